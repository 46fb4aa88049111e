package main

import (
	"bytes"
	"context"
	"os"

	"github.com/srg/ihslink/internal/bledb"
	"github.com/srg/ihslink/internal/testutils"
	"github.com/srg/ihslink/pkg/config"
)

const (
	TestDeviceAddress1 = "AA:BB:CC:DD:EE:01"
	TestDeviceAddress2 = "AA:BB:CC:DD:EE:02"
)

// CommandTestSuite runs ihs commands against a mocked headset. All cmd/ihs
// suites embed it.
type CommandTestSuite struct {
	testutils.MockBLEPeripheralSuite
}

func (s *CommandTestSuite) SetupTest() {
	t := s.T()
	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.ConfigEnvVar, "")
	// Equivalent of t.Chdir (Go 1.24+) for the local Go 1.21 toolchain.
	{
		wd, err := os.Getwd()
		if err != nil {
			t.Fatal(err)
		}
		if err := os.Chdir(t.TempDir()); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = os.Chdir(wd) })
	}

	s.WithPeripheral().
		WithHeadsetProfile().
		WithValue(bledb.ComboHprChar, testutils.ComboHprFrame(1234, 50, -20, 0, 0, 0, 900)).
		WithValue(bledb.AccVectorChar, testutils.AccelerometerFrame(16384, 0, -8192))

	s.WithAdvertisements().
		WithNewAdvertisement().WithAddress(TestDeviceAddress1).WithName("IHS-1").WithRSSI(-45).WithServices(bledb.IMUService).Build().
		WithNewAdvertisement().WithAddress(TestDeviceAddress2).WithName("IHS-2").WithRSSI(-67).WithServices(bledb.IMUService).Build().
		WithNewAdvertisement().WithAddress("11:22:33:44:55:66").WithName("HR Strap").WithRSSI(-30).WithServices("180D").Build()

	s.MockBLEPeripheralSuite.SetupTest()
}

// ExecuteCommand runs ihs with args and returns stdout and stderr.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, string, error) {
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}
