package service

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"git.sr.ht/~jakintosh/keycheck/pkg/tokens"
)

// CheckRequest is the decoded body of a key check. Key is read from the
// definition's key field.
type CheckRequest struct {
	Key   string
	Name  string
	Email string
}

// RequestFromFields picks the key, name and email out of a decoded body.
func (d CheckDefinition) RequestFromFields(fields map[string]string) CheckRequest {
	return CheckRequest{
		Key:   fields[d.KeyField],
		Name:  fields["name"],
		Email: fields["email"],
	}
}

// Check compares the key against every key registered for the check's
// profile. A match issues a session token for the caller.
func (s *Service) Check(
	checkPath string,
	fields map[string]string,
) (
	*tokens.SessionToken,
	error,
) {
	def, err := s.catalog.ByPath(checkPath)
	if err != nil {
		return nil, err
	}

	req := def.RequestFromFields(fields)
	if req.Key == "" {
		return nil, fmt.Errorf("%w: field '%s'", ErrKeyMissing, def.KeyField)
	}

	label, err := s.matchKey(def.Name, req.Key)
	if err != nil {
		return nil, err
	}

	token, err := s.tokenIssuer.IssueSessionToken(
		req.Email,
		req.Name,
		[]string{def.Audience},
		def.Lifetime,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to issue session token: %v", ErrInternal, err)
	}

	s.log.WithFields(logrus.Fields{
		"profile": def.Name,
		"key":     label,
		"subject": req.Email,
	}).Info("key verified")
	return token, nil
}

func (s *Service) matchKey(
	profileName string,
	key string,
) (
	string,
	error,
) {
	// no registered key is this long
	if len(key) > maxKeyLength {
		return "", ErrInvalidKey
	}

	records, err := s.keyStore.GetKeyHashes(profileName)
	if err != nil {
		return "", fmt.Errorf("%w: failed to retrieve keys: %v", ErrInternal, err)
	}

	for _, record := range records {
		err := bcrypt.CompareHashAndPassword(record.Hash, []byte(key))
		if err == nil {
			return record.Label, nil
		}
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			s.log.WithError(err).Warnf("unusable hash for %s/%s", profileName, record.Label)
		}
	}
	return "", ErrInvalidKey
}
