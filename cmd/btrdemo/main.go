// Command btrdemo drives a record engine through the btrcall bridge and
// reports every response code.
//
// Usage:
//
//	btrdemo run --file PATH [--seed]
//	btrdemo codes
//
// run performs Open, AcquireFirst, Close and a second Close on one position
// block and exits nonzero unless the engine answers Success, Success, Success,
// FileNotOpen. --seed creates the file with two records first. The native
// backend (-tags btrcallcgo) loads the library named by --library or
// BTRCALL_LIBRARY.
package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/mkfoss/btrcall"
	"github.com/mkfoss/btrcall/internal/styles"
	"github.com/mkfoss/btrcall/pkg/goengine"
)

const (
	// dataBufferSize matches the buffer size the engine's sample clients use.
	dataBufferSize = 8192

	seedRecordLength = 32
)

var errDeviation = errors.New("call sequence deviated from the expected responses")

func main() {
	os.Exit(run(os.Args, os.Stdout))
}

// run is the actual entry point, returning an exit code.
func run(args []string, out io.Writer) int {
	app := newApp(out)
	if err := app.Run(args); err != nil {
		if !errors.Is(err, errDeviation) {
			fmt.Fprintln(out, styles.Error(err.Error()))
		}
		return 1
	}
	return 0
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "btrdemo",
		Usage:     "exercise a record engine through the BTRCALL bridge",
		Writer:    out,
		ErrWriter: out,
		// errors are reported by run; never let the framework exit the process
		ExitErrHandler: func(*cli.Context, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "library",
				Usage:   "engine shared library (native backend only)",
				EnvVars: []string{btrcall.LibraryEnv},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "open a file, read its first record and close it twice",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "data file to open",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "seed",
						Usage: "create the file with two records before the run",
					},
				},
				Action: runSequence,
			},
			{
				Name:   "codes",
				Usage:  "print the operation and response code tables",
				Action: printCodes,
			},
		},
	}
}

// step is one call of the demonstration sequence and the status it must return.
type step struct {
	op   btrcall.OperationCode
	want btrcall.ResponseCode
}

var sequence = []step{
	{btrcall.Open, btrcall.Success},
	{btrcall.AcquireFirst, btrcall.Success},
	{btrcall.Close, btrcall.Success},
	{btrcall.Close, btrcall.FileNotOpen},
}

func openBridge(c *cli.Context) (*btrcall.Bridge, error) {
	var opts []btrcall.Option
	if lib := c.String("library"); lib != "" {
		opts = append(opts, btrcall.WithLibrary(lib))
	}
	return btrcall.New(opts...)
}

func runSequence(c *cli.Context) error {
	out := c.App.Writer
	path := c.String("file")

	b, err := openBridge(c)
	if err != nil {
		return err
	}
	defer b.Close()

	fmt.Fprintln(out, styles.Header("btrcall demo"))
	fmt.Fprintf(out, "%s %s\n", styles.Info("Backend:"), b.Backend())
	fmt.Fprintf(out, "%s %s\n\n", styles.Info("File:"), styles.Code(path))

	if c.Bool("seed") {
		if err := seed(b, path); err != nil {
			return err
		}
		fmt.Fprintln(out, styles.Success("seeded "+path))
	}

	var pos btrcall.PositionBlock
	data := make([]byte, dataBufferSize)
	key := make([]byte, btrcall.MaxKeyLength)
	deviations := 0

	for _, s := range sequence {
		var length uint32
		var buf, keyBuf []byte
		switch {
		case s.op == btrcall.Open:
			keyBuf = btrcall.PathKey(path)
		case s.op.AcquiresData():
			buf, keyBuf = data, key
			length = uint32(len(data))
		}

		rc, err := b.Invoke(s.op, pos.Bytes(), buf, &length, keyBuf, 0)
		if err != nil {
			fmt.Fprintln(out, styles.ErrorDetails(err, map[string]string{
				"operation": s.op.String(),
				"file":      path,
			}))
			return err
		}

		fmt.Fprintln(out, styles.CallResult(s.op.String(), rc.String(), int32(rc), rc == s.want))
		if s.op.AcquiresData() && rc == btrcall.Success {
			fmt.Fprintf(out, "    %s\n", styles.Dim(fmt.Sprintf("%d bytes: %q", length, preview(data[:length]))))
		}
		if rc != s.want {
			fmt.Fprintln(out, styles.Deviation(s.op.String(), s.want.String(), rc.String()))
			deviations++
		}
	}

	fmt.Fprintln(out)
	if deviations > 0 {
		fmt.Fprintln(out, styles.Error(fmt.Sprintf("%d of %d calls deviated", deviations, len(sequence))))
		return errDeviation
	}
	fmt.Fprintln(out, styles.Success("sequence completed as expected"))
	return nil
}

// seed creates path with one integer key and two records.
func seed(b *btrcall.Bridge, path string) error {
	spec := make([]byte, goengine.FileSpecLength+goengine.KeySpecLength)
	goengine.FileSpec{RecordLength: seedRecordLength, PageSize: 4096, NumberOfKeys: 1}.Encode(spec)
	goengine.KeySpec{
		Position:         1,
		Length:           4,
		Attributes:       goengine.AttrExtendedDataType,
		ExtendedDataType: goengine.TypeInteger,
	}.Encode(spec[goengine.FileSpecLength:])

	var pos btrcall.PositionBlock
	length := uint32(len(spec))
	if err := expect(b, btrcall.Create, pos.Bytes(), spec, &length, btrcall.PathKey(path)); err != nil {
		return err
	}
	length = 0
	if err := expect(b, btrcall.Open, pos.Bytes(), nil, &length, btrcall.PathKey(path)); err != nil {
		return err
	}

	for i, name := range []string{"wgserv", "bbsv10"} {
		rec := make([]byte, seedRecordLength)
		binary.LittleEndian.PutUint32(rec, uint32(i+1))
		copy(rec[4:], name)
		length = uint32(len(rec))
		if err := expect(b, btrcall.Insert, pos.Bytes(), rec, &length, make([]byte, 4)); err != nil {
			return err
		}
	}
	return expect(b, btrcall.Close, pos.Bytes(), nil, nil, nil)
}

func expect(b *btrcall.Bridge, op btrcall.OperationCode, pos, data []byte, length *uint32, key []byte) error {
	rc, err := b.Invoke(op, pos, data, length, key, 0)
	if err != nil {
		return fmt.Errorf("seed %s: %w", op, err)
	}
	if rc != btrcall.Success {
		return fmt.Errorf("seed %s: engine returned %s", op, rc)
	}
	return nil
}

// preview trims trailing NUL padding from a fixed-length record.
func preview(record []byte) string {
	return strings.TrimRight(string(record), "\x00")
}

func printCodes(c *cli.Context) error {
	out := c.App.Writer

	var ops [][]string
	for code := btrcall.Open; code <= btrcall.QueryLast; code++ {
		if name := code.String(); !strings.HasPrefix(name, "OperationCode(") {
			ops = append(ops, []string{"0x" + strconv.FormatUint(uint64(code), 16), name, traits(code)})
		}
	}
	fmt.Fprintln(out, styles.CodeTable("Operations", ops))

	var statuses [][]string
	for code := btrcall.Success; code < 100; code++ {
		if name := code.String(); !strings.HasPrefix(name, "ResponseCode(") {
			statuses = append(statuses, []string{strconv.Itoa(int(code)), name})
		}
	}
	fmt.Fprintln(out, styles.CodeTable("Responses", statuses))
	return nil
}

// traits lists the buffers and positioning an operation relies on.
func traits(op btrcall.OperationCode) string {
	var t []string
	if op.AcquiresData() {
		t = append(t, "data")
	}
	if op.RequiresKey() {
		t = append(t, "key")
	}
	if op.UsesPreviousQuery() {
		t = append(t, "continues")
	}
	if op.QueryOnly() {
		t = append(t, "query")
	}
	if op.IsStep() {
		t = append(t, "step")
	}
	return strings.Join(t, " ")
}
