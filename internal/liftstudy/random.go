package liftstudy

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"measurement-gateway/internal/models"
)

// RandomSource draws the byte that splits new phones between the groups.
type RandomSource interface {
	Byte() (byte, error)
}

// CryptoRandom reads from crypto/rand so groups cannot be predicted.
type CryptoRandom struct{}

func (CryptoRandom) Byte() (byte, error) {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// NewMessageID returns an id shaped like the ones the Cloud API hands out.
func NewMessageID() (string, error) {
	b := make([]byte, 28)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate message id: %w", err)
	}
	return "wamid." + hex.EncodeToString(b), nil
}

// DropAcknowledgement is returned in place of the Cloud API response when a
// message to a control group phone is dropped.
func DropAcknowledgement(phoneNumber string) (*models.SendMessageResponse, error) {
	id, err := NewMessageID()
	if err != nil {
		return nil, err
	}
	return &models.SendMessageResponse{
		MessagingProduct: "whatsapp",
		Contacts: []models.MessageContact{
			{Input: phoneNumber, WaID: phoneNumber},
		},
		Messages: []models.MessageAccepted{
			{ID: id, MessageStatus: "accepted"},
		},
	}, nil
}
