package scanner_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/srg/ihslink/internal/bledb"
	"github.com/srg/ihslink/internal/device"
	"github.com/srg/ihslink/internal/testutils"
	"github.com/srg/ihslink/scanner"
	"github.com/stretchr/testify/suite"
)

type ScannerTestSuite struct {
	testutils.MockBLEPeripheralSuite
}

func (suite *ScannerTestSuite) SetupTest() {
	suite.WithAdvertisements().
		WithNewAdvertisement().WithAddress("AA:BB:CC:DD:EE:01").WithName("IHS-1").WithRSSI(-45).WithServices(bledb.IMUService).Build().
		WithNewAdvertisement().WithAddress("AA:BB:CC:DD:EE:02").WithName("IHS-2").WithRSSI(-67).WithServices(bledb.IMUService).Build().
		WithNewAdvertisement().WithAddress("11:22:33:44:55:66").WithName("HR Strap").WithRSSI(-30).WithServices("180D").Build().
		WithNewAdvertisement().WithAddress("AA:BB:CC:DD:EE:02").WithRSSI(-50).Build()

	suite.MockBLEPeripheralSuite.SetupTest()
}

func (suite *ScannerTestSuite) scan(opts *scanner.ScanOptions) ([]scanner.Discovered, *scanner.Scanner) {
	s := scanner.NewScanner(suite.Logger)
	found, err := s.Scan(context.Background(), opts, nil)
	suite.Require().NoError(err)
	return found, s
}

func addresses(found []scanner.Discovered) []string {
	out := make([]string, len(found))
	for i, d := range found {
		out[i] = d.Address
	}
	return out
}

func (suite *ScannerTestSuite) TestDefaultScanOptions() {
	opts := scanner.DefaultScanOptions()
	suite.Equal(10*time.Second, opts.Duration)
	suite.True(opts.DuplicateFilter)
	suite.Equal([]string{bledb.IMUService}, opts.ServiceUUIDs, "default scan MUST look for headsets")
}

func (suite *ScannerTestSuite) TestScanFindsHeadsets() {
	// GOAL: Verify the default scan keeps headsets only, merges repeated advertisements and orders by RSSI
	//
	// TEST SCENARIO: Two headsets, a strap and a nameless re-advertisement → Scan → two headsets, updated RSSI kept, name kept

	found, s := suite.scan(nil)
	suite.Require().Equal([]string{"AA:BB:CC:DD:EE:01", "AA:BB:CC:DD:EE:02"}, addresses(found))

	second := found[1]
	suite.Equal(-50, second.RSSI, "latest RSSI MUST win")
	suite.Equal("IHS-2", second.Name, "name MUST survive a nameless advertisement")
	suite.Equal([]string{device.NormalizeUUID(bledb.IMUService)}, second.Services)
	suite.False(second.LastSeen.IsZero())

	var kinds []scanner.DeviceEventType
	for len(kinds) < 3 {
		select {
		case e := <-s.Events():
			kinds = append(kinds, e.Type)
		case <-time.After(time.Second):
			suite.FailNow("missing discovery events")
		}
	}
	suite.Equal([]scanner.DeviceEventType{scanner.EventNew, scanner.EventNew, scanner.EventUpdated}, kinds)
}

func (suite *ScannerTestSuite) TestScanFiltering() {
	tests := []struct {
		name string
		opts scanner.ScanOptions
		want []string
	}{
		{
			name: "no service filter",
			opts: scanner.ScanOptions{},
			want: []string{"11:22:33:44:55:66", "AA:BB:CC:DD:EE:01", "AA:BB:CC:DD:EE:02"},
		},
		{
			name: "allow list",
			opts: scanner.ScanOptions{ServiceUUIDs: []string{bledb.IMUService}, AllowList: []string{"aa:bb:cc:dd:ee:02"}},
			want: []string{"AA:BB:CC:DD:EE:02"},
		},
		{
			name: "block list",
			opts: scanner.ScanOptions{ServiceUUIDs: []string{bledb.IMUService}, BlockList: []string{"AA:BB:CC:DD:EE:01"}},
			want: []string{"AA:BB:CC:DD:EE:02"},
		},
		{
			name: "service filter by short uuid",
			opts: scanner.ScanOptions{ServiceUUIDs: []string{"180d"}},
			want: []string{"11:22:33:44:55:66"},
		},
	}
	for _, tt := range tests {
		suite.Run(tt.name, func() {
			opts := tt.opts
			found, _ := suite.scan(&opts)
			suite.Equal(tt.want, addresses(found))
		})
	}
}

func (suite *ScannerTestSuite) TestScanErrors() {
	suite.PeripheralBuilder.FailScan(errors.New("bluetooth is turned off"))

	_, err := scanner.NewScanner(suite.Logger).Scan(context.Background(), nil, nil)
	suite.ErrorIs(err, device.ErrBluetoothOff)
}

func (suite *ScannerTestSuite) TestProgressPhases() {
	var phases []string
	_, err := scanner.NewScanner(suite.Logger).Scan(context.Background(), nil, func(p string) {
		phases = append(phases, p)
	})
	suite.Require().NoError(err)
	suite.Equal([]string{"Scanning", "Processing results"}, phases)
}

func TestScannerTestSuite(t *testing.T) {
	suite.Run(t, new(ScannerTestSuite))
}
