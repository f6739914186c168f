package cmd

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/OpenTraceLab/otload/pkg/loader"
)

// resetFlags puts every otload flag back to its default. cobra keeps values
// and Changed marks between Execute calls on the same command tree.
func resetFlags() {
	reset := func(f *pflag.Flag) {
		if flag.Lookup(f.Name) != nil {
			return // glog's
		}
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	rootCmd.PersistentFlags().VisitAll(reset)
	for _, c := range rootCmd.Commands() {
		c.Flags().VisitAll(reset)
	}
}

// execute runs otload with args and returns its output and the simulated
// FPGA the command talked to, if any.
func execute(t *testing.T, args ...string) (string, *loader.SimFPGA, error) {
	t.Helper()
	resetFlags()

	var fpga *loader.SimFPGA
	newSimFPGA = func() *loader.SimFPGA {
		fpga = loader.NewSimFPGA()
		return fpga
	}
	defer func() { newSimFPGA = loader.NewSimFPGA }()

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), fpga, err
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func bitstream(n int, seed byte) []byte {
	data := make([]byte, n)
	copy(data, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xAA, 0x99, 0x55, 0x66})
	for i := 8; i < n; i++ {
		data[i] = byte(i)*13 + seed
	}
	return data
}

// TestCommandsE2E runs each command against the simulated Au
func TestCommandsE2E(t *testing.T) {
	dir := t.TempDir()
	design := bitstream(120, 1)
	bin := writeFile(t, dir, "top.bin", design)
	bridge := writeFile(t, dir, "au_loader.bin", bitstream(96, 7))
	script := writeFile(t, dir, "idcode.svf", []byte(
		"ENDDR IDLE;\nSIR 6 TDI (09);\nSDR 32 TDI (00000000) TDO (0362D093) MASK (0FFFFFFF);\n"))
	cfgFile := writeFile(t, dir, "otload.yaml", []byte("adapter: sim\nbridge: "+bridge+"\n"))

	tests := []struct {
		name        string
		args        []string
		wantErr     bool
		wantContain []string
		check       func(t *testing.T, fpga *loader.SimFPGA)
	}{
		{
			name:        "list",
			args:        []string{"list", "--adapter", "sim"},
			wantContain: []string{"0: Alchitry|Alchitry Au|SIM00000"},
		},
		{
			name:        "ram",
			args:        []string{"ram", bin, "--adapter", "sim"},
			wantContain: []string{"Programming FPGA RAM with top.bin (120 bytes)... Done."},
			check: func(t *testing.T, fpga *loader.SimFPGA) {
				if !fpga.Done || len(fpga.Loaded) != 1 || !bytes.Equal(fpga.Loaded[0], design) {
					t.Errorf("FPGA not configured with top.bin: done=%v loaded=%d", fpga.Done, len(fpga.Loaded))
				}
			},
		},
		{
			name:        "flash",
			args:        []string{"flash", bin, "-p", bridge, "--adapter", "sim"},
			wantContain: []string{"Writing top.bin (120 bytes) to flash... Done."},
			check: func(t *testing.T, fpga *loader.SimFPGA) {
				if !bytes.Equal(fpga.Flash, design) {
					t.Errorf("flash = % x, want top.bin", fpga.Flash)
				}
			},
		},
		{
			name:        "erase",
			args:        []string{"erase", "--bridge", bridge, "--adapter", "sim"},
			wantContain: []string{"Erasing... Done."},
			check: func(t *testing.T, fpga *loader.SimFPGA) {
				if fpga.Erases != 1 {
					t.Errorf("erases = %d, want 1", fpga.Erases)
				}
			},
		},
		{
			name:        "erase with bridge from config",
			args:        []string{"erase", "--config", cfgFile},
			wantContain: []string{"Erasing... Done."},
		},
		{
			name: "idcode",
			args: []string{"idcode", "--adapter", "sim"},
			wantContain: []string{
				"IDCODE: 0x0362D093 (Mfg: Xilinx",
				"Device: XC7A35T (Artix-7)",
				"IDCODE check passed.",
			},
		},
		{
			name:        "svf",
			args:        []string{"svf", script, "--adapter", "sim"},
			wantContain: []string{"Played 3 commands from " + script},
		},
		{
			name:    "flash without bridge",
			args:    []string{"flash", bin, "--adapter", "sim"},
			wantErr: true,
		},
		{
			name:    "ram missing file",
			args:    []string{"ram", filepath.Join(dir, "missing.bin"), "--adapter", "sim"},
			wantErr: true,
		},
		{
			name:    "ram missing argument",
			args:    []string{"ram", "--adapter", "sim"},
			wantErr: true,
		},
		{
			name:    "board out of range",
			args:    []string{"ram", bin, "--adapter", "sim", "-b", "3"},
			wantErr: true,
		},
		{
			name:    "unknown adapter",
			args:    []string{"list", "--adapter", "jlink"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, fpga, err := execute(t, tt.args...)

			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error but got none\nOutput: %s", output)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v\nOutput: %s", err, output)
			}
			for _, want := range tt.wantContain {
				if !strings.Contains(output, want) {
					t.Errorf("Output missing expected string: %q\nGot:\n%s", want, output)
				}
			}
			if tt.check != nil {
				if fpga == nil {
					t.Fatal("command did not open the simulated board")
				}
				tt.check(t, fpga)
			}
		})
	}
}

// TestIDCodeMismatch checks that a foreign device fails the check but is
// still reported
func TestIDCodeMismatch(t *testing.T) {
	resetFlags()
	newSimFPGA = func() *loader.SimFPGA {
		f := loader.NewSimFPGA()
		f.IDCode = 0x13631093
		return f
	}
	defer func() { newSimFPGA = loader.NewSimFPGA }()

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"idcode", "--adapter", "sim"})
	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "IDCODE check failed") {
		t.Fatalf("err = %v, want IDCODE check failure", err)
	}
	if !strings.Contains(buf.String(), "Device: XC7A100T") {
		t.Errorf("Output missing decoded device:\n%s", buf.String())
	}

	resetFlags()
	buf.Reset()
	rootCmd.SetArgs([]string{"idcode", "--adapter", "sim", "--check=false"})
	if err := rootCmd.Execute(); err != nil {
		t.Errorf("--check=false: %v", err)
	}
}
