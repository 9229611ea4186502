package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/huskylens/internal/db"
	"github.com/banshee-data/huskylens/internal/huskylens"
	"github.com/banshee-data/huskylens/internal/serialport"
	"github.com/banshee-data/huskylens/internal/version"
)

// run executes huskyctl against a scripted port and returns stdout.
func run(t *testing.T, port *serialport.TestablePort, args ...string) (string, *serialport.MockPortFactory, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	factory := serialport.NewMockPortFactory(port)
	root := newRootCmd(factory)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), factory, err
}

func ok() []byte { return huskylens.Encode(huskylens.CommandReturnOK, nil) }

func TestRootFlagDefaults(t *testing.T) {
	root := newRootCmd(serialport.NewMockPortFactory(nil))
	tests := map[string]string{
		"port":       "/dev/ttyUSB0",
		"baud":       "9600",
		"timeout":    "1s",
		"log-level":  "info",
		"log-format": "console",
		"config":     "",
	}
	for name, want := range tests {
		f := root.PersistentFlags().Lookup(name)
		if f == nil {
			t.Errorf("flag --%s not defined", name)
			continue
		}
		if f.DefValue != want {
			t.Errorf("--%s default = %q, want %q", name, f.DefValue, want)
		}
	}
}

func TestSubcommandsRegistered(t *testing.T) {
	root := newRootCmd(serialport.NewMockPortFactory(nil))
	want := []string{
		"algorithm", "arrows", "blocks", "clear-text", "forget", "is-pro", "knock",
		"learn", "load-model", "name", "photo", "record", "save-model",
		"screenshot", "stats", "text", "version",
	}
	var got []string
	for _, c := range root.Commands() {
		if c.Name() == "help" || c.Name() == "completion" {
			continue
		}
		got = append(got, c.Name())
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("subcommands mismatch (-want +got):\n%s", diff)
	}
}

func TestKnock(t *testing.T) {
	port := serialport.NewTestablePort()
	port.QueueResponse(ok())

	out, factory, err := run(t, port, "--port", "/dev/ttyACM3", "--baud", "115200", "knock")
	if err != nil {
		t.Fatalf("knock: %v", err)
	}
	if strings.TrimSpace(out) != "connected" {
		t.Errorf("output = %q", out)
	}
	call := factory.LastCall()
	if call == nil || call.Path != "/dev/ttyACM3" || call.Options.BaudRate != 115200 {
		t.Errorf("open call = %+v", call)
	}
	if !port.Closed {
		t.Error("port not closed after command")
	}
}

func TestKnock_NoAnswer(t *testing.T) {
	port := serialport.NewTestablePort()
	_, _, err := run(t, port, "knock")
	if err == nil || !strings.Contains(err.Error(), "no answer") {
		t.Errorf("err = %v, want no answer", err)
	}
	if !port.Closed {
		t.Error("port not closed after failure")
	}
}

func TestAcknowledgedCommands(t *testing.T) {
	tests := []struct {
		args []string
		want []byte
	}{
		{[]string{"algorithm", "tag"}, huskylens.Encode(huskylens.CommandRequestAlgorithm, []byte{0x05, 0x00})},
		{[]string{"learn", "3"}, huskylens.Encode(huskylens.CommandRequestLearn, []byte{0x03, 0x00})},
		{[]string{"forget"}, huskylens.Encode(huskylens.CommandRequestForget, nil)},
		{[]string{"photo"}, huskylens.Encode(huskylens.CommandRequestPhoto, nil)},
		{[]string{"screenshot"}, huskylens.Encode(huskylens.CommandRequestSaveScreenshot, nil)},
		{[]string{"clear-text"}, huskylens.Encode(huskylens.CommandRequestClearText, nil)},
		{[]string{"save-model", "2"}, huskylens.Encode(huskylens.CommandRequestSendKnowledges, []byte{0x02, 0x00})},
		{[]string{"load-model", "2"}, huskylens.Encode(huskylens.CommandRequestReceiveKnowledges, []byte{0x02, 0x00})},
		{[]string{"name", "1", "Bob"}, huskylens.Encode(huskylens.CommandRequestCustomNames, []byte{0x01, 0x04, 'B', 'o', 'b', 0x00})},
		{[]string{"text", "10", "20", "hi", "there"}, huskylens.Encode(huskylens.CommandRequestCustomText, []byte{8, 0, 10, 20, 'h', 'i', ' ', 't', 'h', 'e', 'r', 'e'})},
	}
	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			port := serialport.NewTestablePort()
			port.QueueResponse(ok())

			out, _, err := run(t, port, tt.args...)
			if err != nil {
				t.Fatalf("%v: %v", tt.args, err)
			}
			if strings.TrimSpace(out) != "ok" {
				t.Errorf("output = %q", out)
			}
			if diff := cmp.Diff(tt.want, port.GetWrittenData()); diff != "" {
				t.Errorf("written bytes (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAcknowledgedCommand_NotAcknowledged(t *testing.T) {
	port := serialport.NewTestablePort()
	port.QueueResponse(huskylens.Encode(huskylens.CommandReturnInfo, []byte{0}))

	_, _, err := run(t, port, "forget")
	if !errors.Is(err, errNotAcknowledged) {
		t.Errorf("err = %v, want errNotAcknowledged", err)
	}
}

func TestArgumentErrors(t *testing.T) {
	tests := [][]string{
		{"learn", "70000"},
		{"learn", "abc"},
		{"algorithm", "telepathy"},
		{"text", "321", "0", "x"},
	}
	for _, args := range tests {
		port := serialport.NewTestablePort()
		_, _, err := run(t, port, args...)
		if !errors.Is(err, huskylens.ErrInvalidArgument) {
			t.Errorf("%v: err = %v, want ErrInvalidArgument", args, err)
		}
		if port.WriteCalls != 0 {
			t.Errorf("%v: %d writes, want none", args, port.WriteCalls)
		}
	}
}

func TestIsPro(t *testing.T) {
	port := serialport.NewTestablePort()
	port.QueueResponse(huskylens.Encode(huskylens.CommandReturnOK, []byte{0x01}))

	out, _, err := run(t, port, "is-pro")
	if err != nil {
		t.Fatalf("is-pro: %v", err)
	}
	if strings.TrimSpace(out) != "pro: true" {
		t.Errorf("output = %q", out)
	}
}

func recordResponse(cmd huskylens.Command, records ...[5]byte) []byte {
	n := byte(len(records))
	out := huskylens.Encode(huskylens.CommandReturnInfo, []byte{n, 0, n, 0, 1, 0})
	for _, r := range records {
		out = append(out, huskylens.Encode(cmd, []byte{r[0], 0, r[1], 0, r[2], 0, r[3], 0, r[4], 0})...)
	}
	return out
}

func TestBlocks(t *testing.T) {
	port := serialport.NewTestablePort()
	port.QueueResponse(recordResponse(0x2A, [5]byte{100, 80, 20, 30, 1}))

	out, _, err := run(t, port, "blocks", "--json")
	if err != nil {
		t.Fatalf("blocks: %v", err)
	}
	var got []huskylens.Block
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	want := []huskylens.Block{{X: 100, Y: 80, Width: 20, Height: 30, ID: 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("blocks (-want +got):\n%s", diff)
	}
}

func TestBlocks_Filters(t *testing.T) {
	tests := []struct {
		args []string
		want []byte
	}{
		{[]string{"blocks"}, huskylens.Encode(huskylens.CommandRequestBlocks, nil)},
		{[]string{"blocks", "--learned"}, huskylens.Encode(huskylens.CommandRequestBlocksLearned, nil)},
		{[]string{"blocks", "--id", "0"}, huskylens.Encode(huskylens.CommandRequestBlocksByID, []byte{0, 0})},
		{[]string{"arrows", "--id", "4"}, huskylens.Encode(huskylens.CommandRequestArrowsByID, []byte{4, 0})},
		{[]string{"arrows", "--learned"}, huskylens.Encode(huskylens.CommandRequestArrowsLearned, nil)},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			port := serialport.NewTestablePort()
			port.QueueResponse(recordResponse(0x2A))

			if _, _, err := run(t, port, tt.args...); err != nil {
				t.Fatalf("%v: %v", tt.args, err)
			}
			if diff := cmp.Diff(tt.want, port.GetWrittenData()); diff != "" {
				t.Errorf("request (-want +got):\n%s", diff)
			}
		})
	}

	if _, _, err := run(t, serialport.NewTestablePort(), "blocks", "--learned", "--id", "2"); err == nil {
		t.Error("--learned with --id should be rejected")
	}
}

func TestArrowsTable(t *testing.T) {
	port := serialport.NewTestablePort()
	port.QueueResponse(recordResponse(0x2B, [5]byte{0, 0, 3, 4, 2}))

	out, _, err := run(t, port, "arrows")
	if err != nil {
		t.Fatalf("arrows: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want header + 1:\n%s", len(lines), out)
	}
	for _, want := range []string{"(0,0)", "(3,4)", "53.1", "5.0", "true"} {
		if !strings.Contains(lines[1], want) {
			t.Errorf("row %q missing %q", lines[1], want)
		}
	}
}

func TestStats(t *testing.T) {
	port := serialport.NewTestablePort()
	dir := t.TempDir()
	path := filepath.Join(dir, "rec.db")

	store, err := db.NewDB(path, nil)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	ctx := context.Background()
	for _, x := range []int{10, 30} {
		if _, err := store.RecordBlocks(ctx, t0(), "", false, []huskylens.Block{{X: x, Y: 5, ID: 7}}); err != nil {
			t.Fatalf("RecordBlocks: %v", err)
		}
	}
	store.Close()

	out, _, err := run(t, port, "stats", "--db", path)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "7 ") || !strings.Contains(lines[1], "20.0") {
		t.Errorf("stats output:\n%s", out)
	}
	if port.WriteCalls != 0 {
		t.Error("stats should not touch the device")
	}
}

func TestVersion(t *testing.T) {
	old := version.Version
	version.Version = "v9.9.9"
	t.Cleanup(func() { version.Version = old })

	out, _, err := run(t, nil, "version", "--short")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if strings.TrimSpace(out) != "v9.9.9" {
		t.Errorf("output = %q", out)
	}
}

func TestInvalidConfigFails(t *testing.T) {
	_, _, err := run(t, serialport.NewTestablePort(), "--log-format", "xml", "knock")
	if err == nil {
		t.Error("expected config validation error")
	}
}
