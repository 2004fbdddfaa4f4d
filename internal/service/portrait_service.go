package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"gradportrait/internal/ids"
	"gradportrait/internal/imagecodec"
	"gradportrait/internal/imagegen"
	"gradportrait/internal/media/sniffer"
	"gradportrait/internal/models"
	"gradportrait/internal/prompt"
	"gradportrait/internal/repository"
	"gradportrait/internal/storage"
)

var (
	ErrMissingUpload = errors.New("no stored portrait and no photo uploaded")
	ErrInvalidInput  = errors.New("invalid input")
)

const defaultGenerationTimeout = 120 * time.Second

// Upload is a user photo that has already been read from the request.
type Upload struct {
	Filename string
	MIME     string
	Data     []byte
}

// UploadLoader reads the request photo. Resolve calls it only once a portrait
// has to be generated, so a bad upload never masks a missing record or a
// stored image.
type UploadLoader func() (*Upload, error)

type PhotoResult struct {
	User      models.User
	Image     string
	Generated bool
	ImagePath string
}

type OnboardInput struct {
	Name   string
	Gender string
	Career string
	Cedula string
	Photo  Upload
}

type OnboardResult struct {
	User      models.User
	ImagePath string
}

type CheckResult struct {
	User       models.User
	HasPhoto   bool
	Image      string
	ImageError string
}

type Diagnostics struct {
	User        models.User
	HasImage    bool
	Shape       imagecodec.Shape
	Format      string
	Width       int
	Height      int
	DecodeError string
}

type ContentWriter interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
}

// MirrorPublisher schedules a copy of a generated portrait to object storage.
type MirrorPublisher interface {
	PublishMirror(ctx context.Context, userID, key string) error
}

type PortraitConfig struct {
	Logo              []byte
	GenerationTimeout time.Duration
}

type PortraitService struct {
	users   repository.UserStore
	editor  imagegen.Editor
	content ContentWriter
	mirror  MirrorPublisher
	cfg     PortraitConfig
	log     zerolog.Logger
	flights singleflight.Group
	now     func() time.Time
}

// NewPortraitService wires the generate-or-fetch workflow. mirror may be nil.
func NewPortraitService(users repository.UserStore, editor imagegen.Editor, content ContentWriter, mirror MirrorPublisher, cfg PortraitConfig, log zerolog.Logger) *PortraitService {
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = defaultGenerationTimeout
	}
	return &PortraitService{
		users:   users,
		editor:  editor,
		content: content,
		mirror:  mirror,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

// Resolve returns the stored portrait for id, generating it from the loaded
// upload when none exists yet. load may be nil. Generation for a given id runs
// at most once at a time and continues even if the caller goes away.
func (s *PortraitService) Resolve(ctx context.Context, id string, load UploadLoader) (PhotoResult, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return PhotoResult{}, err
	}
	if user.HasImage() {
		return existingPhoto(user)
	}
	if load == nil {
		return PhotoResult{}, ErrMissingUpload
	}
	upload, err := load()
	if err != nil {
		return PhotoResult{}, err
	}
	if upload == nil || len(upload.Data) == 0 {
		return PhotoResult{}, ErrMissingUpload
	}

	photo := *upload
	flightCtx := context.WithoutCancel(ctx)
	ch := s.flights.DoChan(id, func() (any, error) {
		return s.generateForExisting(flightCtx, id, photo)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return PhotoResult{}, res.Err
		}
		if res.Shared {
			s.log.Debug().Str("user_id", id).Msg("joined in-flight generation")
		}
		return res.Val.(PhotoResult), nil
	case <-ctx.Done():
		return PhotoResult{}, ctx.Err()
	}
}

func (s *PortraitService) generateForExisting(ctx context.Context, id string, photo Upload) (PhotoResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.GenerationTimeout)
	defer cancel()

	// A request that finished generating just before this flight started
	// has already stored the image.
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return PhotoResult{}, err
	}
	if user.HasImage() {
		return existingPhoto(user)
	}

	logger := s.log.With().Str("user_id", id).Logger()
	logger.Info().Msg("generating portrait")

	portrait, err := s.generate(ctx, prompt.Build(user.Name, user.Gender, user.Career), photo)
	if err != nil {
		logger.Error().Err(err).Msg("portrait generation failed")
		return PhotoResult{}, err
	}

	key := storage.PortraitFilename(user.Name, s.now())
	path, err := s.content.Write(ctx, key, portrait)
	if err != nil {
		return PhotoResult{}, fmt.Errorf("save portrait copy: %w", err)
	}

	uri, err := imagecodec.FromBuffer(portrait).DataURI()
	if err != nil {
		return PhotoResult{}, err
	}

	updated, err := s.users.UpdateImage(ctx, id, portrait)
	if err != nil {
		return PhotoResult{}, fmt.Errorf("store portrait: %w", err)
	}
	s.publishMirror(ctx, id, key)

	logger.Info().Str("path", path).Int("bytes", len(portrait)).Msg("portrait stored")
	return PhotoResult{
		User:      updated,
		Image:     uri,
		Generated: true,
		ImagePath: path,
	}, nil
}

// Onboard always generates a portrait from the submitted photo and creates
// the record. The key is the cedula, or a temporary id when none is given.
func (s *PortraitService) Onboard(ctx context.Context, in OnboardInput) (OnboardResult, error) {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Career) == "" {
		return OnboardResult{}, fmt.Errorf("%w: name and career are required", ErrInvalidInput)
	}
	if len(in.Photo.Data) == 0 {
		return OnboardResult{}, ErrMissingUpload
	}

	id := strings.TrimSpace(in.Cedula)
	if id == "" {
		id = ids.Temp()
	} else if _, err := s.users.FindByID(ctx, id); err == nil {
		return OnboardResult{}, repository.ErrDuplicateUser
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return OnboardResult{}, err
	}

	logger := s.log.With().Str("user_id", id).Bool("temp_id", ids.IsTemp(id)).Logger()
	logger.Info().Msg("onboarding user")

	genCtx, cancel := context.WithTimeout(ctx, s.cfg.GenerationTimeout)
	defer cancel()

	portrait, err := s.generate(genCtx, prompt.Build(in.Name, in.Gender, in.Career), in.Photo)
	if err != nil {
		logger.Error().Err(err).Msg("portrait generation failed")
		return OnboardResult{}, err
	}

	key := storage.GeneratedFilename(s.now())
	path, err := s.content.Write(ctx, key, portrait)
	if err != nil {
		return OnboardResult{}, fmt.Errorf("save portrait copy: %w", err)
	}

	user, err := s.users.Create(ctx, models.User{
		ID:     id,
		Name:   in.Name,
		Gender: in.Gender,
		Career: in.Career,
		Image:  imagecodec.FromBuffer(portrait),
	})
	if err != nil {
		return OnboardResult{}, err
	}
	s.publishMirror(ctx, id, key)

	logger.Info().Str("path", path).Msg("user onboarded")
	return OnboardResult{User: user, ImagePath: path}, nil
}

// Check reports whether id has a stored portrait without generating one.
// A payload that cannot be decoded is reported, not returned as an error.
func (s *PortraitService) Check(ctx context.Context, id string) (CheckResult, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return CheckResult{}, err
	}

	result := CheckResult{User: user, HasPhoto: user.HasImage()}
	if !result.HasPhoto {
		return result, nil
	}
	uri, err := user.Image.DataURI()
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", id).Msg("stored image could not be decoded")
		result.ImageError = err.Error()
		return result, nil
	}
	result.Image = uri
	return result, nil
}

// Inspect describes how the stored image payload is shaped and what it decodes to.
func (s *PortraitService) Inspect(ctx context.Context, id string) (Diagnostics, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return Diagnostics{}, err
	}

	diag := Diagnostics{User: user, HasImage: user.HasImage()}
	if !diag.HasImage {
		return diag, nil
	}
	diag.Shape = user.Image.Shape()

	data, err := user.Image.Bytes()
	if err != nil {
		diag.DecodeError = err.Error()
		return diag, nil
	}
	info, err := sniffer.Probe(data)
	diag.Format = string(info.Type)
	diag.Width = info.Width
	diag.Height = info.Height
	if err != nil {
		diag.DecodeError = err.Error()
	}
	return diag, nil
}

// generate sends the photo and the logo to the provider and decodes the result.
func (s *PortraitService) generate(ctx context.Context, instruction string, photo Upload) ([]byte, error) {
	images := []imagegen.ReferenceImage{{
		Name: photoName(photo),
		MIME: photo.MIME,
		Data: photo.Data,
	}}
	if len(s.cfg.Logo) > 0 {
		images = append(images, imagegen.ReferenceImage{Name: "logo.png", MIME: "image/png", Data: s.cfg.Logo})
	}

	encoded, err := s.editor.Edit(ctx, imagegen.EditRequest{Prompt: instruction, Images: images})
	if err != nil {
		return nil, err
	}
	portrait, err := imagecodec.FromBase64(encoded).Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable image in response: %v", imagegen.ErrProvider, err)
	}
	return portrait, nil
}

func (s *PortraitService) publishMirror(ctx context.Context, id, key string) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.PublishMirror(ctx, id, key); err != nil {
		s.log.Warn().Err(err).Str("user_id", id).Str("key", key).Msg("enqueue mirror failed")
	}
}

func existingPhoto(user models.User) (PhotoResult, error) {
	uri, err := user.Image.DataURI()
	if err != nil {
		return PhotoResult{}, err
	}
	return PhotoResult{User: user, Image: uri}, nil
}

func photoName(photo Upload) string {
	if photo.Filename != "" {
		return photo.Filename
	}
	if result, err := sniffer.DetectHead(photo.Data); err == nil {
		return "photo." + result.Extension()
	}
	return "photo.png"
}
