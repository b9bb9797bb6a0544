package device

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// LoadUser reads a user record from a JSON file. Templates are base64
// encoded, as encoding/json renders byte slices.
func LoadUser(path string) (*User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read user file %s", path)
	}
	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, errors.Wrapf(err, "failed to decode user file %s", path)
	}
	return &u, nil
}
