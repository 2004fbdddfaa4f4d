package models

import (
	"time"

	"gradportrait/internal/imagecodec"
)

// User is one portrait subject. Image is the zero payload until a portrait
// has been generated.
type User struct {
	ID        string
	Name      string
	Gender    string
	Career    string
	Image     imagecodec.Payload
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (u User) HasImage() bool {
	return !u.Image.IsZero()
}

// Profile is the public view of a user returned by the API.
type Profile struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Gender string `json:"gender,omitempty"`
	Career string `json:"career,omitempty"`
}

func (u User) Profile() Profile {
	return Profile{ID: u.ID, Name: u.Name, Gender: u.Gender, Career: u.Career}
}
