package sqlbuild

import (
	"fmt"
	"strings"
)

// LockTableOption names one table to lock and the lock mode to take on it.
type LockTableOption struct {
	TableName string
	LockType  string
}

var lockModeAliases = map[string]string{
	"READ":  "SHARE",
	"WRITE": "ACCESS EXCLUSIVE",
}

var lockModes = map[string]struct{}{
	"ACCESS SHARE":           {},
	"ROW SHARE":              {},
	"ROW EXCLUSIVE":          {},
	"SHARE UPDATE EXCLUSIVE": {},
	"SHARE":                  {},
	"SHARE ROW EXCLUSIVE":    {},
	"EXCLUSIVE":              {},
	"ACCESS EXCLUSIVE":       {},
}

// LockMode normalizes a lock type to a PostgreSQL table lock mode.
// READ and WRITE are accepted as SHARE and ACCESS EXCLUSIVE.
func LockMode(lockType string) (string, error) {
	mode := strings.ToUpper(strings.Join(strings.Fields(lockType), " "))
	if alias, ok := lockModeAliases[mode]; ok {
		mode = alias
	}

	if _, ok := lockModes[mode]; !ok {
		return "", fmt.Errorf("unknown lock_type `%s`", lockType)
	}

	return mode, nil
}

// LockTables renders one LOCK TABLE statement per lock mode, in the order the modes first appear.
// The statements only have effect inside a transaction; the locks are held until it ends.
func LockTables(tables []LockTableOption) ([]string, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("No table_name provided while trying to lock table")
	}

	var modes []string
	byMode := map[string][]string{}

	for _, t := range tables {
		if err := validateTable(t.TableName, "lock"); err != nil {
			return nil, err
		}

		if strings.TrimSpace(t.LockType) == "" {
			return nil, fmt.Errorf("No lock_type provided while trying to lock table `%s`", t.TableName)
		}

		mode, err := LockMode(t.LockType)
		if err != nil {
			return nil, err
		}

		if _, seen := byMode[mode]; !seen {
			modes = append(modes, mode)
		}
		byMode[mode] = append(byMode[mode], QuoteIdentifier(t.TableName))
	}

	statements := make([]string, len(modes))
	for i, mode := range modes {
		statements[i] = fmt.Sprintf("LOCK TABLE %s IN %s MODE", strings.Join(byMode[mode], ", "), mode)
	}

	return statements, nil
}

// UnlockAll releases every session level advisory lock held by the connection.
func UnlockAll() string {
	return "SELECT pg_advisory_unlock_all()"
}

// TryAdvisoryLock tries to take the session level advisory lock identified by $1.
func TryAdvisoryLock() string {
	return "SELECT pg_try_advisory_lock($1)"
}

// AdvisoryUnlock releases the session level advisory lock identified by $1.
func AdvisoryUnlock() string {
	return "SELECT pg_advisory_unlock($1)"
}
