package service

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"

	"telecloud/internal/domain"
)

// RemoteCleaner deletes the remote objects of files whose metadata is
// already gone. Failures are logged per file and never undo the metadata
// delete.
type RemoteCleaner struct {
	deleter RemoteDeleter
}

func NewRemoteCleaner(deleter RemoteDeleter) *RemoteCleaner {
	return &RemoteCleaner{deleter: deleter}
}

// Purge attempts every file and returns the aggregated failures.
func (c *RemoteCleaner) Purge(ctx context.Context, files []domain.File) error {
	var merr *multierror.Error

	for _, f := range files {
		if f.ProviderRef == nil || *f.ProviderRef == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			merr = multierror.Append(merr, err)
			break
		}

		if err := c.deleter.DeleteRemoteObject(ctx, *f.ProviderRef); err != nil {
			log.Warn().Err(err).
				Str("file_id", f.ID.String()).
				Str("owner_id", f.OwnerID).
				Msg("remote object not deleted")
			merr = multierror.Append(merr, fmt.Errorf("file %s: %w", f.ID, err))
		}
	}

	return merr.ErrorOrNil()
}
