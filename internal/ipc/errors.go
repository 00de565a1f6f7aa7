package ipc

import (
	"errors"
	"net/rpc"
	"strings"

	"panelcast/internal/services"
)

func decodeError(err error) error {
	var remote rpc.ServerError
	if !errors.As(err, &remote) {
		return err
	}
	kind, message, ok := strings.Cut(string(remote), kindSeparator)
	if !ok {
		return errors.New(string(remote))
	}
	return services.FromKind(services.Kind(kind), message)
}
