package main

import (
	"context"
	"encoding/base64"
	"net/http"
	"os"
	"testing"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
	"github.com/aws/aws-lambda-go/events"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestMain(m *testing.M) {
	logutils.InitLogger("error")
	os.Exit(m.Run())
}

type recordingHandler struct {
	updates []tgbotapi.Update
}

func (r *recordingHandler) HandleUpdateSync(_ context.Context, update tgbotapi.Update) {
	r.updates = append(r.updates, update)
}

const updateJSON = `{"update_id":11,"message":{"message_id":1,"chat":{"id":99,"type":"private"},"text":"/help"}}`

func TestHandlerDecodesBody(t *testing.T) {
	tests := []struct {
		name string
		req  events.APIGatewayProxyRequest
	}{
		{"plain", events.APIGatewayProxyRequest{Body: updateJSON}},
		{"base64", events.APIGatewayProxyRequest{
			Body:            base64.StdEncoding.EncodeToString([]byte(updateJSON)),
			IsBase64Encoded: true,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &recordingHandler{}
			resp, err := newHandler(h)(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("handler error = %v", err)
			}
			if resp.StatusCode != http.StatusOK {
				t.Errorf("status = %d, want 200", resp.StatusCode)
			}
			if len(h.updates) != 1 || h.updates[0].UpdateID != 11 || h.updates[0].Message.Chat.ID != 99 {
				t.Errorf("updates = %+v", h.updates)
			}
		})
	}
}

func TestHandlerRejectsInvalidBody(t *testing.T) {
	for _, req := range []events.APIGatewayProxyRequest{
		{Body: "{"},
		{Body: "%%%", IsBase64Encoded: true},
	} {
		h := &recordingHandler{}
		resp, err := newHandler(h)(context.Background(), req)
		if err != nil {
			t.Fatalf("handler error = %v", err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
		if len(h.updates) != 0 {
			t.Errorf("handler called for %q", req.Body)
		}
	}
}
