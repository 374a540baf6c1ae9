package model

import "encoding/json"

// ImageReferenceType is the type marker downstream renderers expect.
const ImageReferenceType = 1

// ImageReference is stored on a content record and points at its uploaded
// image. Field order and names are a wire format.
type ImageReference struct {
	Type              int    `json:"type"`
	FileName          string `json:"fileName"`
	ServerURL         string `json:"serverUrl"`
	ServerRelativeURL string `json:"serverRelativeUrl"`
}

func (r ImageReference) JSON() (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
