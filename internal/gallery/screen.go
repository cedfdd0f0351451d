package gallery

import (
	"errors"
	"slices"

	"nuestra-historia/internal/memories"
)

// Screen is everything a client needs to draw the gallery.
type Screen struct {
	State            State             `json:"state"`
	Memories         []memories.Memory `json:"memories"`
	Draft            Draft             `json:"draft"`
	Selected         *memories.Memory  `json:"selected,omitempty"`
	ConfirmingDelete bool              `json:"confirmingDelete"`
	Deleting         bool              `json:"deleting"`
	Notice           *Notice           `json:"notice,omitempty"`
	Banner           string            `json:"banner,omitempty"`
}

// Notice is the last recoverable error shown to the user.
type Notice struct {
	Kind    string `json:"kind"` // validation, upload, remote_write, other
	Message string `json:"message"`
}

func (v *View) screen() Screen {
	s := Screen{
		State:            v.state,
		Memories:         slices.Clone(v.list),
		Draft:            v.draft,
		ConfirmingDelete: v.confirming,
		Deleting:         v.deleting,
		Notice:           noticeFor(v.notice),
	}
	if m := v.find(v.selectedID); m != nil {
		selected := *m
		s.Selected = &selected
	}
	if v.banner != nil {
		s.Banner = v.banner.Error()
	}
	return s
}

func noticeFor(err error) *Notice {
	if err == nil {
		return nil
	}

	var (
		validation *memories.ValidationError
		uploadErr  *memories.UploadError
		writeErr   *memories.RemoteWriteError
	)
	kind := "other"
	switch {
	case errors.As(err, &validation):
		kind = "validation"
	case errors.As(err, &uploadErr):
		kind = "upload"
	case errors.As(err, &writeErr):
		kind = "remote_write"
	}
	return &Notice{Kind: kind, Message: err.Error()}
}
