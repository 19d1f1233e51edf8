// Package profile is the profile directory: owner-only profile edits and the
// candidate lists discovery draws from.
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"gorm.io/datatypes"

	"github.com/oggyb/muzz-connect/internal/db"
	svcErr "github.com/oggyb/muzz-connect/internal/errors"
	"github.com/oggyb/muzz-connect/internal/repository"
)

var (
	ErrNotOwner = fmt.Errorf("%w: profiles can only be edited by their owner", svcErr.ErrPermission)
	ErrInvalid  = fmt.Errorf("%w: invalid profile", svcErr.ErrInvalid)
)

// UnsetPolicy decides what a viewer without a declared gender is shown.
type UnsetPolicy string

const (
	ShowEveryone UnsetPolicy = "everyone"
	ShowNone     UnsetPolicy = "none"
	ShowUnset    UnsetPolicy = "unset"
)

// ParseUnsetPolicy falls back to ShowEveryone for unknown values.
func ParseUnsetPolicy(s string) UnsetPolicy {
	switch p := UnsetPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case ShowNone, ShowUnset:
		return p
	default:
		return ShowEveryone
	}
}

// Patch lists profile fields to change. Nil fields are left untouched; a
// non-nil Gender of None clears the declared gender.
type Patch struct {
	DisplayName *string
	Bio         *string
	Age         *int
	Location    *string
	Interests   []string
	AvatarURL   *string
	Gender      *Gender
}

type Directory struct {
	profiles *repository.ProfileRepository
	likes    *repository.LikeRepository
	policy   UnsetPolicy
	log      *slog.Logger
}

func NewDirectory(profiles *repository.ProfileRepository, likes *repository.LikeRepository, policy UnsetPolicy, log *slog.Logger) *Directory {
	return &Directory{profiles: profiles, likes: likes, policy: policy, log: log}
}

func (d *Directory) Get(ctx context.Context, userID string) (*db.Profile, error) {
	return d.profiles.Get(ctx, userID)
}

// Ensure creates an empty profile on first login and returns the stored one.
func (d *Directory) Ensure(ctx context.Context, userID string) (*db.Profile, bool, error) {
	created, err := d.profiles.Create(ctx, &db.Profile{UserID: userID})
	if err != nil {
		return nil, false, svcErr.Retryable("create profile", err)
	}
	p, err := d.profiles.Get(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if created {
		d.log.Info("profile created", "user", userID)
	}
	return p, created, nil
}

// Update applies patch to userID's profile on behalf of actor.
func (d *Directory) Update(ctx context.Context, actor, userID string, patch Patch) (*db.Profile, error) {
	if actor != userID {
		return nil, ErrNotOwner
	}
	fields, err := patch.columns()
	if err != nil {
		return nil, err
	}
	if _, _, err := d.Ensure(ctx, userID); err != nil {
		return nil, err
	}
	if err := d.profiles.Update(ctx, userID, fields); err != nil {
		return nil, svcErr.Retryable("update profile", err)
	}
	return d.profiles.Get(ctx, userID)
}

func (d *Directory) SetPremium(ctx context.Context, userID string, premium bool) error {
	return d.profiles.SetPremium(ctx, userID, premium)
}

// Candidates lists profiles viewer may be shown: never the viewer, never
// anyone the viewer already liked, nor anyone in exclude.
func (d *Directory) Candidates(ctx context.Context, viewer string, exclude []string, offset, limit int) ([]db.Profile, error) {
	gender := None
	p, err := d.profiles.Get(ctx, viewer)
	switch {
	case err == nil:
		gender = GenderFrom(p.Gender)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, svcErr.Retryable("load viewer profile", err)
	}

	liked, err := d.likes.LikedBy(ctx, viewer)
	if err != nil {
		return nil, svcErr.Retryable("load liked set", err)
	}

	q := d.query(gender)
	q.Exclude = append(append(append(q.Exclude, viewer), liked...), exclude...)
	q.Offset = offset
	q.Limit = limit

	out, err := d.profiles.Candidates(ctx, q)
	if err != nil {
		return nil, svcErr.Retryable("list candidates", err)
	}
	return out, nil
}

func (d *Directory) query(viewer Gender) repository.CandidateQuery {
	g, ok := viewer.Get()
	if !ok {
		switch d.policy {
		case ShowNone:
			return repository.CandidateQuery{NoneMatch: true}
		case ShowUnset:
			return repository.CandidateQuery{OnlyUnsetGender: true}
		default:
			return repository.CandidateQuery{}
		}
	}
	switch g {
	case "male":
		return repository.CandidateQuery{Genders: []string{"female"}}
	case "female":
		return repository.CandidateQuery{Genders: []string{"male"}}
	default:
		return repository.CandidateQuery{}
	}
}

const (
	maxDisplayName = 128
	maxBio         = 2000
	maxAge         = 130
)

func (p Patch) columns() (map[string]any, error) {
	fields := make(map[string]any)
	if p.DisplayName != nil {
		name := strings.TrimSpace(*p.DisplayName)
		if utf8.RuneCountInString(name) > maxDisplayName {
			return nil, fmt.Errorf("%w: display name longer than %d characters", ErrInvalid, maxDisplayName)
		}
		fields["display_name"] = name
	}
	if p.Bio != nil {
		if utf8.RuneCountInString(*p.Bio) > maxBio {
			return nil, fmt.Errorf("%w: bio longer than %d characters", ErrInvalid, maxBio)
		}
		fields["bio"] = *p.Bio
	}
	if p.Age != nil {
		if *p.Age < 0 || *p.Age > maxAge {
			return nil, fmt.Errorf("%w: age %d out of range", ErrInvalid, *p.Age)
		}
		fields["age"] = *p.Age
	}
	if p.Location != nil {
		fields["location"] = strings.TrimSpace(*p.Location)
	}
	if p.Interests != nil {
		fields["interests"] = datatypes.JSONSlice[string](p.Interests)
	}
	if p.AvatarURL != nil {
		fields["avatar_url"] = strings.TrimSpace(*p.AvatarURL)
	}
	if p.Gender != nil {
		fields["gender"] = p.Gender.Ptr()
	}
	return fields, nil
}
