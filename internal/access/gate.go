// Package access classifies a presented credential into a privilege tier.
//
// The library supports at most two shared secrets: a read password and a
// write password. With neither configured the instance runs open and every
// caller is granted write access.
package access

// Level is the privilege tier derived from a presented credential.
type Level string

const (
	LevelNone  Level = "none"
	LevelRead  Level = "read"
	LevelWrite Level = "write"
)

// CanRead reports whether the level grants read access (write implies read).
func (l Level) CanRead() bool { return l == LevelRead || l == LevelWrite }

// CanWrite reports whether the level grants write access.
func (l Level) CanWrite() bool { return l == LevelWrite }

// Gate holds the configured secrets.
type Gate struct {
	readSecret  string
	writeSecret string
}

func New(readSecret, writeSecret string) *Gate {
	return &Gate{readSecret: readSecret, writeSecret: writeSecret}
}

// Enabled reports whether password protection is configured at all.
func (g *Gate) Enabled() bool {
	return g.readSecret != "" || g.writeSecret != ""
}

// Classify maps a presented secret to a privilege level.
// The write secret is checked first since write implies read.
func (g *Gate) Classify(presented string) Level {
	if !g.Enabled() {
		return LevelWrite
	}
	if g.writeSecret != "" && presented == g.writeSecret {
		return LevelWrite
	}
	if g.readSecret != "" && presented == g.readSecret {
		return LevelRead
	}
	return LevelNone
}
