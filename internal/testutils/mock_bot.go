package testutils

import (
	"context"
	"os"
	"sync"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/bot"
)

// MockMessage captures a single message sent by MockBot.
type MockMessage struct {
	ChatID    int64
	MessageID int
	Text      string
}

// MockFile captures a single audio or document upload.
type MockFile struct {
	ChatID    int64
	Name      string
	Performer string
	Title     string
	Audio     bool
	Data      []byte
}

// MockBot implements bot.Service for testing.
// SentMessages collects every message sent or edited.
// SentFiles collects every uploaded file, with its content read at send time.
type MockBot struct {
	mu           sync.Mutex
	SentMessages []MockMessage
	SentFiles    []MockFile
	nextID       int

	// SendFileError, if set, is returned by SendAudio and SendDocument.
	SendFileError error
}

var _ bot.Service = (*MockBot)(nil)

func (m *MockBot) SendMessage(chatID int64, text string) {
	_, _ = m.SendMessageReturningID(chatID, text)
}

func (m *MockBot) SendMessageReturningID(chatID int64, text string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.SentMessages = append(m.SentMessages, MockMessage{ChatID: chatID, MessageID: m.nextID, Text: text})
	return m.nextID, nil
}

func (m *MockBot) EditMessage(chatID int64, messageID int, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentMessages = append(m.SentMessages, MockMessage{ChatID: chatID, MessageID: messageID, Text: text})
	return nil
}

func (m *MockBot) SendAudio(_ context.Context, chatID int64, upload bot.Upload) error {
	return m.sendFile(chatID, upload, true)
}

func (m *MockBot) SendDocument(_ context.Context, chatID int64, upload bot.Upload) error {
	return m.sendFile(chatID, upload, false)
}

func (m *MockBot) sendFile(chatID int64, upload bot.Upload, audio bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendFileError != nil {
		return m.SendFileError
	}
	data, err := os.ReadFile(upload.Path)
	if err != nil {
		return err
	}
	m.SentFiles = append(m.SentFiles, MockFile{
		ChatID:    chatID,
		Name:      upload.Name,
		Performer: upload.Performer,
		Title:     upload.Title,
		Audio:     audio,
		Data:      data,
	})
	return nil
}

// Messages returns a copy of the captured messages.
func (m *MockBot) Messages() []MockMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockMessage(nil), m.SentMessages...)
}

// Files returns a copy of the captured uploads.
func (m *MockBot) Files() []MockFile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockFile(nil), m.SentFiles...)
}

// GetLastMessage returns the most recently sent message, or nil if none.
func (m *MockBot) GetLastMessage() *MockMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.SentMessages) == 0 {
		return nil
	}
	msg := m.SentMessages[len(m.SentMessages)-1]
	return &msg
}

// ClearMessages resets the captured messages and files.
func (m *MockBot) ClearMessages() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentMessages = nil
	m.SentFiles = nil
}
