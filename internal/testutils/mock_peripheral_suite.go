package testutils

import (
	"time"

	blelib "github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	goble "github.com/srg/ihslink/internal/device/go-ble"
	"github.com/stretchr/testify/suite"
)

// MockBLEPeripheralSuite swaps goble.DeviceFactory for a mocked device built
// from PeripheralBuilder. Configure the builder in SetupTest before calling
// the embedded SetupTest:
//
//	func (s *CentralSuite) SetupTest() {
//	    s.WithPeripheral().WithHeadsetProfile()
//	    s.MockBLEPeripheralSuite.SetupTest()
//	}
//
// Without configuration the peripheral is a headset.
type MockBLEPeripheralSuite struct {
	suite.Suite

	Helper *TestHelper
	Logger *logrus.Logger

	OriginalDeviceFactory func() (blelib.Device, error)
	TestTimeout           time.Duration

	PeripheralBuilder     *PeripheralDeviceBuilder
	AdvertisementsBuilder *AdvertisementArrayBuilder[[]blelib.Advertisement]
}

func (s *MockBLEPeripheralSuite) SetupSuite() {
	s.Helper = NewTestHelper(s.T())
	s.Logger = s.Helper.Logger
	s.TestTimeout = 5 * time.Second
	s.OriginalDeviceFactory = goble.DeviceFactory
}

func (s *MockBLEPeripheralSuite) SetupTest() {
	if s.PeripheralBuilder == nil {
		s.PeripheralBuilder = NewPeripheralDeviceBuilder(s.T()).WithHeadsetProfile()
	}
	if s.AdvertisementsBuilder != nil {
		s.PeripheralBuilder.
			WithScanAdvertisements().
			WithAdvertisements(s.AdvertisementsBuilder.Build()...).
			Build()
	}

	builder := s.PeripheralBuilder
	goble.DeviceFactory = func() (blelib.Device, error) {
		return builder.Build(), nil
	}
}

func (s *MockBLEPeripheralSuite) TearDownTest() {
	goble.DeviceFactory = s.OriginalDeviceFactory
	s.PeripheralBuilder = nil
	s.AdvertisementsBuilder = nil
}

// WithPeripheral returns the builder, creating an empty one on first use.
func (s *MockBLEPeripheralSuite) WithPeripheral() *PeripheralDeviceBuilder {
	if s.PeripheralBuilder == nil {
		s.PeripheralBuilder = NewPeripheralDeviceBuilder(s.T())
	}
	return s.PeripheralBuilder
}

func (s *MockBLEPeripheralSuite) WithAdvertisements() *AdvertisementArrayBuilder[[]blelib.Advertisement] {
	if s.AdvertisementsBuilder == nil {
		s.AdvertisementsBuilder = NewAdvertisementArrayBuilder[[]blelib.Advertisement]()
	}
	return s.AdvertisementsBuilder
}
