package source

import (
	"bufio"
	"strings"
)

// Section markers. The up marker is optional (everything before the down
// marker is the up script); a file may declare NoDown instead of a down
// section to state that it is intentionally irreversible.
const (
	MarkerUp     = "-- +migrate Up"
	MarkerDown   = "-- +migrate Down"
	MarkerNoDown = "-- +migrate NoDown"
)

// parseScripts splits a raw definition into its up and down scripts.
// Returned scripts are trimmed; an absent down section yields an empty
// down script, which the executor treats as irreversible.
func parseScripts(raw string) (up, down string, noDown bool, err error) {
	var upBuf, downBuf strings.Builder
	cur := &upBuf
	sawDown := false

	sc := bufio.NewScanner(strings.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		switch marker(line) {
		case MarkerUp:
			if sawDown || noDown {
				return "", "", false, &MalformedMigrationError{Reason: "up marker after down section"}
			}
			continue
		case MarkerDown:
			if noDown {
				return "", "", false, &MalformedMigrationError{Reason: "both Down and NoDown markers present"}
			}
			if sawDown {
				return "", "", false, &MalformedMigrationError{Reason: "multiple down markers"}
			}
			sawDown = true
			cur = &downBuf
			continue
		case MarkerNoDown:
			if sawDown {
				return "", "", false, &MalformedMigrationError{Reason: "both Down and NoDown markers present"}
			}
			noDown = true
			continue
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return "", "", false, &MalformedMigrationError{Reason: err.Error()}
	}

	up = strings.TrimSpace(upBuf.String())
	down = strings.TrimSpace(downBuf.String())
	if up == "" {
		return "", "", false, &MalformedMigrationError{Reason: "empty up script"}
	}
	if noDown && down != "" {
		return "", "", false, &MalformedMigrationError{Reason: "NoDown migration has a down section"}
	}
	return up, down, noDown, nil
}

// marker normalizes a line and returns the matching marker constant, or "".
func marker(line string) string {
	t := strings.TrimSpace(line)
	switch {
	case strings.EqualFold(t, MarkerUp):
		return MarkerUp
	case strings.EqualFold(t, MarkerDown):
		return MarkerDown
	case strings.EqualFold(t, MarkerNoDown):
		return MarkerNoDown
	}
	return ""
}
