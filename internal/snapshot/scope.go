package snapshot

// systemDatabases hold server metadata and are never part of a backup that
// covers all databases.
var systemDatabases = map[string]struct{}{
	"admin":  {},
	"local":  {},
	"config": {},
}

func IsSystemDatabase(name string) bool {
	_, ok := systemDatabases[name]
	return ok
}

// Scope selects the databases a backup captures or a restore applies. The
// same rule is used in both directions so a single-database deployment
// restores exactly what it backed up.
type Scope struct {
	Database string
}

func AllDatabases() Scope { return Scope{} }

func SingleDatabase(name string) Scope { return Scope{Database: name} }

func (s Scope) IsAll() bool { return s.Database == "" }

func (s Scope) Includes(database string) bool {
	if s.IsAll() {
		return !IsSystemDatabase(database)
	}
	return database == s.Database
}

func (s Scope) String() string {
	if s.IsAll() {
		return "all databases"
	}
	return "database " + s.Database
}
