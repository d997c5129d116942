package json

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fwojciec/reconcile"
)

// envelope is the v1 wire format for a persisted progress snapshot.
type envelope struct {
	Version   int       `json:"version"`
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind,omitempty"`
	Phase     string    `json:"phase"`
	Text      string    `json:"text"`
	Items     []itemDTO `json:"items"`
	UpdatedAt time.Time `json:"updated_at"`
}

// itemDTO is the JSON representation of an Item.
type itemDTO struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Content string `json:"content"`
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
	Version int    `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

// MarshalProgress serializes a Progress snapshot to JSON in v1 envelope format.
func MarshalProgress(p reconcile.Progress) ([]byte, error) {
	return json.MarshalIndent(toEnvelope(p), "", "  ")
}

// UnmarshalProgress deserializes a Progress snapshot from JSON in v1 envelope
// format.
func UnmarshalProgress(data []byte) (reconcile.Progress, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return reconcile.Progress{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Version != 1 {
		return reconcile.Progress{}, fmt.Errorf("unsupported envelope version: %d", env.Version)
	}
	items := make([]reconcile.Item, len(env.Items))
	for i, dto := range env.Items {
		status, err := parseStatus(dto.Status)
		if err != nil {
			return reconcile.Progress{}, fmt.Errorf("item %d: %w", i, err)
		}
		items[i] = reconcile.Item{
			Index:   dto.Index,
			Name:    dto.Name,
			Content: dto.Content,
			Status:  status,
			ID:      dto.ID,
			Version: dto.Version,
			Error:   dto.Error,
		}
	}
	return reconcile.Progress{
		SessionID: env.SessionID,
		Kind:      env.Kind,
		Phase:     reconcile.Phase(env.Phase),
		Text:      env.Text,
		Items:     items,
		UpdatedAt: env.UpdatedAt,
	}, nil
}

// Save writes a Progress snapshot to a JSON file, creating parent directories
// as needed. The file is replaced atomically.
func Save(path string, p reconcile.Progress) error {
	data, err := MarshalProgress(p)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return writeFile(path, data)
}

// Load reads a Progress snapshot from a JSON file.
func Load(path string) (reconcile.Progress, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return reconcile.Progress{}, fmt.Errorf("read file: %w", err)
	}
	return UnmarshalProgress(data)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func toEnvelope(p reconcile.Progress) envelope {
	items := make([]itemDTO, len(p.Items))
	for i, it := range p.Items {
		items[i] = itemDTO{
			Index:   it.Index,
			Name:    it.Name,
			Content: it.Content,
			Status:  string(it.Status),
			ID:      it.ID,
			Version: it.Version,
			Error:   it.Error,
		}
	}
	return envelope{
		Version:   1,
		SessionID: p.SessionID,
		Kind:      p.Kind,
		Phase:     string(p.Phase),
		Text:      p.Text,
		Items:     items,
		UpdatedAt: p.UpdatedAt,
	}
}

func parseStatus(s string) (reconcile.Status, error) {
	switch st := reconcile.Status(s); st {
	case reconcile.StatusProcessing, reconcile.StatusCompleted, reconcile.StatusFailed:
		return st, nil
	default:
		return "", fmt.Errorf("unknown item status: %q", s)
	}
}
