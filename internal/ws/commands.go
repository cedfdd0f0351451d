package ws

import (
	"encoding/json"
	"errors"
	"fmt"

	"nuestra-historia/internal/gallery"
	"nuestra-historia/internal/upload"
)

// H is a shorthand for event payloads.
type H map[string]interface{}

// Command is a message sent by the browser.
type Command struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type submitData struct {
	Filename string `json:"filename"`
	Source   string `json:"source"`
	Content  []byte `json:"content"` // base64 in JSON
}

type selectData struct {
	ID string `json:"id"`
}

var errUnknownCommand = errors.New("unknown command")

// dispatch applies cmd to the client's view. Failures are reported to the
// browser as an error event; the resulting screen arrives as a view event.
func (c *Client) dispatch(cmd Command) {
	if err := c.apply(cmd); err != nil {
		c.push("error", H{"command": cmd.Type, "message": err.Error()})
	}
}

func (c *Client) apply(cmd Command) error {
	v := c.view

	switch cmd.Type {
	case "refresh":
		s, err := v.Screen()
		if err != nil {
			return err
		}
		c.push("view", s)
		return nil
	case "open_form":
		return v.OpenForm()
	case "update_draft":
		var d gallery.Draft
		if err := decode(cmd.Data, &d); err != nil {
			return err
		}
		return v.UpdateDraft(d)
	case "submit":
		var d submitData
		if err := decode(cmd.Data, &d); err != nil {
			return err
		}
		return v.Submit(upload.File{Name: d.Filename, Source: d.Source, Data: d.Content})
	case "close_form":
		return v.CloseForm()
	case "select":
		var d selectData
		if err := decode(cmd.Data, &d); err != nil {
			return err
		}
		return v.Select(d.ID)
	case "deselect":
		return v.Deselect()
	case "request_delete":
		return v.RequestDelete()
	case "confirm_delete":
		return v.ConfirmDelete()
	case "cancel_delete":
		return v.CancelDelete()
	default:
		return fmt.Errorf("%w: %q", errUnknownCommand, cmd.Type)
	}
}

func decode(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return errors.New("missing command data")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid command data: %w", err)
	}
	return nil
}
