// Package prompt renders the image-edit instruction sent with each portrait request.
package prompt

import "fmt"

const GenderFemale = "female"

const (
	sceneTemplate = "Edit the image, based on the reference. The image is of me in the picture smiling while holding my graduation diploma with the logo that i provide to you and the name %s, additionally two signatures in the bottom right corner and left corner. I am standing in a well-kept garden in front of a circular water fountain. Behind me is a modern multi-story building with large windows, likely a university campus. %s"

	diplomaTemplate = "The diploma I am holding shows that I graduated as a %s from the Escuela Colombiana de Ingeniería Julio Garavito in Colombia. My name, visible on the diploma, is %s."

	closingTemplate = "In the background, there are flowering bushes, which, together with the modern building, create a solemn and pleasant atmosphere—perfect for a graduation ceremony. %s"
)

type variant struct {
	attire  string
	posture string
}

var (
	femaleVariant = variant{
		attire:  "I am 5 years older dressed elegantly in a formal dress with subtle details, looking professional and confident for my graduation ceremony.",
		posture: "My posture, elegant attire, and the way I proudly hold the diploma reflect my happiness and pride in this academic achievement.",
	}
	maleVariant = variant{
		attire:  "I am 5 years older dressed formally in a white dress shirt with small dark dots, a blue tie with white dots, a dark blue suit jacket, and matching pants.",
		posture: "My posture, formal attire, and the way he proudly holds the diploma reflect my happiness and pride in this academic achievement.",
	}
)

// Build returns the generation prompt. Only the exact value "female" selects the
// female template; every other gender value gets the male one. name and career
// are inserted verbatim.
func Build(name, gender, career string) string {
	v := maleVariant
	if gender == GenderFemale {
		v = femaleVariant
	}

	return fmt.Sprintf(sceneTemplate, name, v.attire) + "\n\n" +
		fmt.Sprintf(diplomaTemplate, career, name) + "\n\n" +
		fmt.Sprintf(closingTemplate, v.posture)
}
