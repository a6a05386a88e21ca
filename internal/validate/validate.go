// Package validate holds field validators for ticket and feedback input.
package validate

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/emersion/go-message/mail"

	"student-helpdesk/internal/models"
)

var (
	nimRx   = regexp.MustCompile(`^[0-9]{6,20}$`)
	phoneRx = regexp.MustCompile(`^(\+62|62|0)8[1-9][0-9]{6,11}$`)
	dataRx  = regexp.MustCompile(`^data:([\w.+-]+/[\w.+-]+)?(;[\w-]+=[\w.-]+)*;base64,`)
)

// StoragePrefix is the key prefix every bucket-backed attachment must carry.
const StoragePrefix = "attachments/"

var ErrAttachmentTooLarge = errors.New("attachment exceeds size limit")

// Required trims s and checks it is non-empty and at most max runes.
func Required(field, s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%s is required", field)
	}
	if max > 0 && utf8.RuneCountInString(s) > max {
		return "", fmt.Errorf("%s must be at most %d characters", field, max)
	}
	return s, nil
}

func NIM(s string) error {
	if !nimRx.MatchString(strings.TrimSpace(s)) {
		return errors.New("nim must be 6 to 20 digits")
	}
	return nil
}

// Phone accepts Indonesian mobile numbers written 08…, 628… or +628….
func Phone(s string) error {
	s = strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(s))
	if !phoneRx.MatchString(s) {
		return errors.New("phone must be a valid mobile number")
	}
	return nil
}

// Email returns the bare, lower-cased address.
func Email(s string) (string, error) {
	a, err := mail.ParseAddress(strings.TrimSpace(s))
	if err != nil || a.Name != "" {
		return "", errors.New("invalid email address")
	}
	return strings.ToLower(a.Address), nil
}

// Attachment normalizes a in place. Inline data may be raw base64 or a data URL;
// maxEncoded caps the encoded length and is checked before decoding.
// It returns the encoded length counted against the cap.
func Attachment(a *models.Attachment, maxEncoded int) (int, error) {
	a.Name = strings.TrimSpace(a.Name)
	if a.Name == "" {
		a.Name = "attachment"
	}

	if a.Data == "" {
		if a.StoragePath == "" {
			return 0, errors.New("attachment needs data or a storage path")
		}
		if !strings.HasPrefix(a.StoragePath, StoragePrefix) || strings.Contains(a.StoragePath, "..") {
			return 0, errors.New("invalid attachment storage path")
		}
		return 0, nil
	}
	if a.StoragePath != "" {
		return 0, errors.New("attachment cannot have both data and a storage path")
	}

	data := a.Data
	if m := dataRx.FindStringSubmatch(data); m != nil {
		if m[1] != "" && a.ContentType == "" {
			a.ContentType = m[1]
		}
		data = data[len(m[0]):]
	}
	if maxEncoded > 0 && len(data) > maxEncoded {
		return len(data), ErrAttachmentTooLarge
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return len(data), errors.New("attachment data is not valid base64")
	}
	if a.ContentType == "" {
		a.ContentType = http.DetectContentType(raw)
	}
	a.Data = data
	a.Size = int64(len(raw))
	return len(data), nil
}

// OwnedBy rejects a storage reference outside the owner's upload prefix.
// Inline attachments always pass.
func OwnedBy(a models.Attachment, owner string) error {
	if a.StoragePath == "" {
		return nil
	}
	if owner == "" || !strings.HasPrefix(a.StoragePath, StoragePrefix+owner+"/") {
		return errors.New("attachment was not uploaded by you")
	}
	return nil
}

// Attachments validates a list sharing one encoded-size budget.
func Attachments(list []models.Attachment, maxEncoded int) error {
	total := 0
	for i := range list {
		n, err := Attachment(&list[i], maxEncoded)
		if err != nil {
			return err
		}
		total += n
		if maxEncoded > 0 && total > maxEncoded {
			return ErrAttachmentTooLarge
		}
	}
	return nil
}
