// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"fmt"

	"hostprep/internal/config"
)

// RenderLogrotate renders the daily rotation policy for the service's log
// glob. copytruncate keeps the running process's open file handles valid,
// so no signal/reopen coordination with the app server is needed.
func RenderLogrotate(cfg *config.Config) string {
	return fmt.Sprintf(`%s/*.log {
    daily
    rotate 14
    compress
    delaycompress
    missingok
    notifempty
    copytruncate
}
`, cfg.LogDir())
}
