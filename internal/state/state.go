// Package state holds the process-wide shared UI state and broadcasts every
// change to its subscribers.
package state

import (
	"github.com/goccy/go-json"
	"github.com/kozaktomas/fuzzysearch/internal/fingerprint"
)

// ImageRef identifies the locally chosen image. It is a plain value; holders
// cannot reach back into the bus through it.
type ImageRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// State is a snapshot of the shared state. It is passed by value and has no
// exported fields, so observers only ever hold copies.
type State struct {
	selectedImage    ImageRef
	hasSelectedImage bool

	latestFingerprint    fingerprint.Fingerprint
	hasLatestFingerprint bool
}

// SelectedImage returns the currently chosen image, if any.
func (s State) SelectedImage() (ImageRef, bool) {
	return s.selectedImage, s.hasSelectedImage
}

// LatestFingerprint returns the most recently computed fingerprint, if any.
func (s State) LatestFingerprint() (fingerprint.Fingerprint, bool) {
	return s.latestFingerprint, s.hasLatestFingerprint
}

// IsEmpty reports whether no field is set.
func (s State) IsEmpty() bool {
	return !s.hasSelectedImage && !s.hasLatestFingerprint
}

// ShowPreview reports whether the selected image preview belongs to the
// results for query, i.e. the latest fingerprint is the query itself.
func (s State) ShowPreview(query fingerprint.Fingerprint) bool {
	return s.hasLatestFingerprint && s.latestFingerprint == query
}

type stateJSON struct {
	SelectedImage     *ImageRef `json:"selected_image"`
	LatestFingerprint *int64    `json:"latest_fingerprint"`
}

// MarshalJSON encodes unset fields as null.
func (s State) MarshalJSON() ([]byte, error) {
	var out stateJSON
	if s.hasSelectedImage {
		ref := s.selectedImage
		out.SelectedImage = &ref
	}
	if s.hasLatestFingerprint {
		fp := int64(s.latestFingerprint)
		out.LatestFingerprint = &fp
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (s *State) UnmarshalJSON(data []byte) error {
	var in stateJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*s = State{}
	if in.SelectedImage != nil {
		s.selectedImage, s.hasSelectedImage = *in.SelectedImage, true
	}
	if in.LatestFingerprint != nil {
		s.latestFingerprint, s.hasLatestFingerprint = fingerprint.Fingerprint(*in.LatestFingerprint), true
	}
	return nil
}

// Request is a change to the shared state. Each request fully replaces the
// field it addresses.
type Request interface {
	apply(s *State)
}

// SetSelectedImage sets or (with a nil Ref) clears the selected image.
type SetSelectedImage struct {
	Ref *ImageRef
}

func (r SetSelectedImage) apply(s *State) {
	if r.Ref == nil {
		s.selectedImage, s.hasSelectedImage = ImageRef{}, false
		return
	}
	s.selectedImage, s.hasSelectedImage = *r.Ref, true
}

// SetLatestFingerprint sets or (with a nil Fingerprint) clears the latest fingerprint.
type SetLatestFingerprint struct {
	Fingerprint *fingerprint.Fingerprint
}

func (r SetLatestFingerprint) apply(s *State) {
	if r.Fingerprint == nil {
		s.latestFingerprint, s.hasLatestFingerprint = 0, false
		return
	}
	s.latestFingerprint, s.hasLatestFingerprint = *r.Fingerprint, true
}

// ClearState resets every field.
type ClearState struct{}

func (ClearState) apply(s *State) {
	*s = State{}
}

// SelectImage is shorthand for a SetSelectedImage request.
func SelectImage(ref ImageRef) SetSelectedImage {
	return SetSelectedImage{Ref: &ref}
}

// LatestHash is shorthand for a SetLatestFingerprint request.
func LatestHash(fp fingerprint.Fingerprint) SetLatestFingerprint {
	return SetLatestFingerprint{Fingerprint: &fp}
}
