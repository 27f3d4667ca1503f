package device

import (
	"fmt"
	"log/slog"
)

// Repository kind constants for BuildRepository.
const (
	RepositoryKindInMem    = "inmem"
	RepositoryKindPostgres = "postgres"
	RepositoryKindNoOp     = "noop"
)

// BuildRepository selects a device repository implementation by kind. The
// db argument is required for the postgres kind and ignored otherwise.
func BuildRepository(kind string, db DBTX) (DeviceRepository, error) {
	switch kind {
	case RepositoryKindInMem, "":
		return NewInMemDeviceRepository(), nil
	case RepositoryKindPostgres:
		if db == nil {
			return nil, fmt.Errorf("postgres device repository requires a database connection")
		}
		return NewPostgresDeviceRepository(db), nil
	case RepositoryKindNoOp:
		return NewNoOpDeviceRepository(), nil
	default:
		slog.Error("Unknown device repository kind", "kind", kind)
		return nil, fmt.Errorf("unknown device repository kind: %s", kind)
	}
}
