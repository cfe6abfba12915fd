package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cxd309/tampere-platoon/internal/config"
	"github.com/cxd309/tampere-platoon/internal/database"
	gormstorage "github.com/cxd309/tampere-platoon/internal/storage/gorm"
	"github.com/cxd309/tampere-platoon/internal/storage/influx"
	"github.com/cxd309/tampere-platoon/internal/storage/memory"
	"github.com/cxd309/tampere-platoon/internal/storage/websocket"
)

// Storage types accepted by NewBackend.
const (
	TypeNone      = "none"
	TypeMemory    = "memory"
	TypeSQLite    = "sqlite"
	TypePostgres  = "postgres"
	TypeInflux    = "influx"
	TypeWebSocket = "websocket"
)

// ErrUnknownType is returned by NewBackend for an unsupported storage type.
var ErrUnknownType = errors.New("unknown storage type")

// NewBackend creates a storage backend based on configuration. It returns a nil
// Backend for TypeNone. The backend is not initialised.
func NewBackend(cfg config.StorageConfig, logger zerolog.Logger) (Backend, error) {
	switch strings.ToLower(cfg.Type) {
	case TypeNone, "":
		return nil, nil
	case TypeMemory:
		return memory.New(), nil
	case TypeSQLite:
		db, err := database.OpenSQLite(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return gormstorage.New(db, logger), nil
	case TypePostgres:
		db, err := database.OpenPostgres(cfg.Postgres.DSN())
		if err != nil {
			return nil, err
		}
		return gormstorage.New(db, logger), nil
	case TypeInflux:
		return influx.New(cfg.Influx, logger), nil
	case TypeWebSocket:
		return websocket.New(cfg.WebSocket, logger), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, cfg.Type)
	}
}
