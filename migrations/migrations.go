// Package migrations embeds the SQL schema applied by `server migrate`.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultNotifyChannel is the channel the trips trigger publishes on when
// none is configured.
const DefaultNotifyChannel = "trip_changes"

// channelPlaceholder marks where the notify channel literal goes.
const channelPlaceholder = "{{notify_channel}}"

//go:embed *.up.sql
var files embed.FS

// Up applies every *.up.sql file in lexical order. Each file is idempotent,
// so re-running with a different notifyChannel re-points the trigger.
func Up(ctx context.Context, pool *pgxpool.Pool, notifyChannel string) ([]string, error) {
	names, err := fs.Glob(files, "*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("migrations: list: %w", err)
	}
	sort.Strings(names)

	applied := make([]string, 0, len(names))
	for _, name := range names {
		body, err := files.ReadFile(name)
		if err != nil {
			return applied, fmt.Errorf("migrations: read %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, render(string(body), notifyChannel)); err != nil {
			return applied, fmt.Errorf("migrations: apply %s: %w", name, err)
		}
		applied = append(applied, strings.TrimSuffix(name, ".up.sql"))
	}
	return applied, nil
}

// render substitutes the notify channel as a quoted SQL string literal.
func render(body, notifyChannel string) string {
	if notifyChannel == "" {
		notifyChannel = DefaultNotifyChannel
	}
	literal := "'" + strings.ReplaceAll(notifyChannel, "'", "''") + "'"
	return strings.ReplaceAll(body, channelPlaceholder, literal)
}
