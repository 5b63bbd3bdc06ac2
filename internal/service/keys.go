package service

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// maxKeyLength is the longest input bcrypt hashes without truncation.
const maxKeyLength = 72

// RegisterKey stores a hash of key under label for the named profile.
func (s *Service) RegisterKey(
	profileName string,
	label string,
	key string,
) error {
	if _, err := s.catalog.ByName(profileName); err != nil {
		return err
	}
	if key == "" {
		return ErrKeyMissing
	}
	if len(key) > maxKeyLength {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrKeyTooLong, len(key), maxKeyLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(key), s.hashMode.Cost())
	if err != nil {
		return fmt.Errorf("%w: failed to hash key: %v", ErrInternal, err)
	}

	if err := s.keyStore.InsertKey(profileName, label, hash); err != nil {
		if errors.Is(err, ErrKeyExists) {
			return err
		}
		return fmt.Errorf("%w: failed to insert key: %v", ErrInternal, err)
	}

	s.log.WithField("profile", profileName).Infof("registered key '%s'", label)
	return nil
}

// RevokeKey removes the key registered under label.
func (s *Service) RevokeKey(
	profileName string,
	label string,
) error {
	deleted, err := s.keyStore.DeleteKey(profileName, label)
	if err != nil {
		return fmt.Errorf("%w: failed to delete key: %v", ErrInternal, err)
	}
	if !deleted {
		return fmt.Errorf("%w: %s/%s", ErrKeyNotFound, profileName, label)
	}
	return nil
}
