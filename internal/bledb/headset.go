package bledb

// Standard services and characteristics read from the headset.
const (
	DeviceInfoService  = "180a"
	SystemIDChar       = "2a23"
	ModelNumberChar    = "2a24"
	SerialNumberChar   = "2a25"
	FirmwareRevChar    = "2a26"
	HardwareRevChar    = "2a27"
	SoftwareRevChar    = "2a28"
	ManufacturerChar   = "2a29"
	BatteryService     = "180f"
	BatteryLevelChar   = "2a19"
	ClientCharConfDesc = "2902"
)

// Vendor services and characteristics of the headset.
const (
	SystemService     = "8f8fe645-9e32-4e12-9150-f6b488f6b5aa"
	NonceChar         = "96593bf7-459b-422a-8808-a17f678a5bec"
	KeyChar           = "9fc790c1-c7bb-49bf-8d7a-965267b5802f"
	FeaturesChar      = "35f59ce8-f152-41cd-ac5f-8ce6d7e249f8"
	ConfigurationChar = "f38db2f6-ade3-4805-9b4f-00530e6452bb"
	StatisticsChar    = "95e0f0aa-b390-46d5-85f3-01e2aaf4c10a"

	IMUService         = "7ca251df-137b-41b2-9169-1c0215bea6de"
	UpdateIntervalChar = "652949ce-a54e-40b2-b27b-407d944e14e3"
	MagVectorChar      = "32d9c336-722b-4ec5-998f-4f7dcf08f465"
	AccVectorChar      = "e1f1e3bd-9672-4213-948d-206c4fa9820f"
	MagCalibrationChar = "ad6486a9-bceb-4ebd-9ca3-48b9a9675be5"
	ComboHprChar       = "919d5add-298f-4431-acf9-9f67275f1455"
	MagParamsChar      = "760d93e8-476d-4d7c-a894-b95112d16aea"
	MagDistParamsChar  = "e08b0483-63eb-4920-86d5-c1e2b5ae6e72"

	GPSService  = "52466e96-a001-425a-96b6-7d5795a1ea08"
	GPSAllInOne = "ca00ace5-1f61-41c2-82e3-a4d4fe416d31"
	GPSRtcmChar = "7b5558b1-075e-4b37-b773-fc48773ba9b4"
)
