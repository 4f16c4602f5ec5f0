package database

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"

	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	"github.com/semmidev/mongovault/internal/domain"
	"github.com/semmidev/mongovault/internal/snapshot"
)

// MongoDumpStrategy delegates archives to the MongoDB database tools. The
// archive body is mongodump's own gzip archive format.
type MongoDumpStrategy struct {
	uri      string
	scope    snapshot.Scope
	dumpBin  string
	restBin  string
	shellBin string
}

func NewMongoDump(uri string) (*MongoDumpStrategy, error) {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid mongodb uri: %w", err)
	}
	scope := snapshot.AllDatabases()
	if cs.Database != "" {
		scope = snapshot.SingleDatabase(cs.Database)
	}
	return &MongoDumpStrategy{
		uri:      uri,
		scope:    scope,
		dumpBin:  "mongodump",
		restBin:  "mongorestore",
		shellBin: "mongosh",
	}, nil
}

func (m *MongoDumpStrategy) Name() string {
	return "mongodump"
}

func (m *MongoDumpStrategy) Ping(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, m.shellBin, m.uri, "--quiet", "--eval", "db.runCommand({ ping: 1 })")
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("mongodb ping failed: %w, output: %s", err, string(output))
	}
	return nil
}

func (m *MongoDumpStrategy) Dump(ctx context.Context, w io.Writer) error {
	cmd := exec.CommandContext(ctx, m.dumpBin, m.dumpArgs()...)
	cmd.Stdout = w

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("mongodump failed: %w, output: %s", err, tail(stderr.Bytes()))
	}
	return nil
}

func (m *MongoDumpStrategy) Restore(ctx context.Context, r io.Reader, opts domain.RestoreOptions) error {
	cmd := exec.CommandContext(ctx, m.restBin, m.restoreArgs(opts)...)
	cmd.Stdin = r

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("mongorestore failed: %w, output: %s", err, tail(output))
	}
	return nil
}

func (m *MongoDumpStrategy) dumpArgs() []string {
	return []string{
		fmt.Sprintf("--uri=%s", m.uri),
		"--archive",
		"--gzip",
	}
}

// restoreArgs applies the same scope rule as the driver strategy: one
// database when the connection string names one, else everything but the
// system databases.
func (m *MongoDumpStrategy) restoreArgs(opts domain.RestoreOptions) []string {
	args := []string{
		fmt.Sprintf("--uri=%s", m.uri),
		"--archive",
		"--gzip",
	}
	if opts.Drop {
		args = append(args, "--drop")
	}
	if m.scope.IsAll() {
		args = append(args, "--nsExclude=admin.*", "--nsExclude=config.*", "--nsExclude=local.*")
	} else {
		args = append(args, fmt.Sprintf("--nsInclude=%s.*", m.scope.Database))
	}
	return args
}

// tail keeps the end of a tool's output, where the error usually is.
func tail(output []byte) string {
	const max = 2048
	if len(output) > max {
		output = output[len(output)-max:]
	}
	return string(bytes.TrimSpace(output))
}
