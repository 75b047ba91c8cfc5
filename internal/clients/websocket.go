package clients

import (
	"context"
	"fmt"

	ws "gymdesk/internal/transport/websocket"
)

// WebSocketClient turns service events into hub messages.
type WebSocketClient struct {
	hub *ws.Hub
}

func NewWebSocketClient(hub *ws.Hub) *WebSocketClient {
	return &WebSocketClient{hub: hub}
}

func (c *WebSocketClient) NotifyExportProgress(ctx context.Context, adminID, exportID string, progress float64, stage string) error {
	if c.hub == nil {
		return nil
	}

	data := map[string]any{
		"id":       exportID,
		"progress": progress,
	}
	if stage != "" {
		data["stage"] = stage
	}

	c.hub.Broadcast(adminID, &ws.Message{
		Type:    "export_progress",
		Channel: fmt.Sprintf("export_progress#%s", adminID),
		Data:    data,
	})
	return nil
}

func (c *WebSocketClient) NotifyExportComplete(ctx context.Context, adminID, exportID, url, filename string) error {
	if c.hub == nil {
		return nil
	}

	c.hub.Broadcast(adminID, &ws.Message{
		Type:    "export_complete",
		Channel: fmt.Sprintf("export_complete#%s", adminID),
		Data: map[string]any{
			"id":       exportID,
			"url":      url,
			"filename": filename,
		},
	})
	return nil
}

func (c *WebSocketClient) NotifyExportFailed(ctx context.Context, adminID, exportID, errMsg string) error {
	if c.hub == nil {
		return nil
	}

	c.hub.Broadcast(adminID, &ws.Message{
		Type:    "export_failed",
		Channel: fmt.Sprintf("export_failed#%s", adminID),
		Data: map[string]any{
			"id":      exportID,
			"message": errMsg,
		},
	})
	return nil
}

// NotifyDuplicatesFound goes to every connected admin: scheduled scans run
// without a requesting user.
func (c *WebSocketClient) NotifyDuplicatesFound(ctx context.Context, clientID string, payments, plans int) error {
	if c.hub == nil {
		return nil
	}

	c.hub.BroadcastAll(&ws.Message{
		Type:    "duplicates_found",
		Channel: "duplicates",
		Data: map[string]any{
			"client_id": clientID,
			"payments":  payments,
			"plans":     plans,
		},
	})
	return nil
}

func (c *WebSocketClient) NotifyDuplicatesReconciled(ctx context.Context, adminID, clientID string, deleted int64) error {
	if c.hub == nil {
		return nil
	}

	c.hub.Broadcast(adminID, &ws.Message{
		Type:    "duplicates_reconciled",
		Channel: fmt.Sprintf("duplicates#%s", clientID),
		Data: map[string]any{
			"client_id": clientID,
			"deleted":   deleted,
		},
	})
	return nil
}
