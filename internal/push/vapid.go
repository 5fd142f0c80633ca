package push

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/workspace/internal/logger"
)

// DefaultVAPIDKeysFile: файл ключей, если PUSH_VAPID_KEYS_FILE не задан.
const DefaultVAPIDKeysFile = "config/vapid.json"

// VAPIDKeys подписывают Web Push от имени рабочего пространства. Публичный ключ
// отдаётся браузеру через /api/config/push, приватный нужен Sender.
type VAPIDKeys struct {
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

func (k *VAPIDKeys) complete() bool {
	return k != nil && k.PublicKey != "" && k.PrivateKey != ""
}

// EnsureVAPIDKeys читает пару ключей из path. Если файла нет или пара неполная,
// создаёт новую и сохраняет её. Ошибка записи только логируется.
func EnsureVAPIDKeys(path string) (*VAPIDKeys, error) {
	if path == "" {
		path = DefaultVAPIDKeysFile
	}
	keys, err := readVAPIDKeys(path)
	switch {
	case err == nil && keys.complete():
		return keys, nil
	case err != nil && !errors.Is(err, os.ErrNotExist):
		logger.Errorf("push: ключи VAPID в %s не читаются, создаём новые: %v", path, err)
	}

	pub, priv, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return nil, fmt.Errorf("push: generate vapid keys: %w", err)
	}
	keys = &VAPIDKeys{PublicKey: pub, PrivateKey: priv}
	if err := writeVAPIDKeys(path, keys); err != nil {
		logger.Errorf("push: ключи VAPID не сохранены в %s: %v", path, err)
		return keys, nil
	}
	logger.Infof("push: новые ключи VAPID записаны в %s", path)
	return keys, nil
}

func readVAPIDKeys(path string) (*VAPIDKeys, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	keys := &VAPIDKeys{}
	if err := json.Unmarshal(raw, keys); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return keys, nil
}

// writeVAPIDKeys пишет файл с правами 0600: в нём приватный ключ.
func writeVAPIDKeys(path string, keys *VAPIDKeys) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}
