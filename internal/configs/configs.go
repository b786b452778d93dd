// Package configs contains the system configurations.
package configs

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"time"
)

const (
	defaultCancellationFeePercent = 50
	defaultWeeklyLateFeePercent   = 5
	defaultMaxLateFeePercent      = 50
	defaultPaymentDueDays         = 25
	defaultSlotDurationMinutes    = 30
	defaultBookingHorizonDays     = 90
	defaultSweepIntervalMinutes   = 60
)

type configData struct {
	ServerPort             int32  `json:"port"`
	DatabaseDSN            string `json:"database_dsn"`
	DatabaseDriver         string `json:"database_driver"`
	PrivateKeyFile         string `json:"private_key_file"`
	Timezone               string `json:"timezone"`
	CancellationFeePercent *int64 `json:"cancellation_fee_percent"`
	WeeklyLateFeePercent   *int64 `json:"weekly_late_fee_percent"`
	MaxLateFeePercent      *int64 `json:"max_late_fee_percent"`
	PaymentDueDays         *int   `json:"payment_due_days"`
	SlotDurationMinutes    *int   `json:"slot_duration_minutes"`
	BookingHorizonDays     *int   `json:"booking_horizon_days"`
	SweepIntervalMinutes   *int   `json:"sweep_interval_minutes"`
}

// Config holds the system configuration.
type Config interface {
	ServerPort() int32
	DatabaseDSN() string
	DatabaseDriver() string
	PrivateKeyFile() string
	PrivateKey() rsa.PrivateKey

	// Timezone is the reference location all date arithmetic is normalized to.
	Timezone() *time.Location

	// CancellationFeePercent is charged when canceling inside the free-cancellation window.
	CancellationFeePercent() int64

	// WeeklyLateFeePercent accrues per started week past the payment due date.
	WeeklyLateFeePercent() int64

	// MaxLateFeePercent caps the accrued late fee.
	MaxLateFeePercent() int64

	// PaymentDueDays is the number of days after the appointment start the payment is due.
	PaymentDueDays() int

	// SlotDurationMinutes is the default length of a bookable slot.
	SlotDurationMinutes() int

	// BookingHorizonDays is how far in advance appointments may be booked.
	BookingHorizonDays() int

	// SweepIntervalMinutes is the period of the late-fee sweep job.
	SweepIntervalMinutes() int
}

type defaultConfig struct {
	data       *configData
	privateKey *rsa.PrivateKey
	location   *time.Location
}

func (c *defaultConfig) ServerPort() int32 {
	return c.data.ServerPort
}

func (c *defaultConfig) DatabaseDSN() string {
	return c.data.DatabaseDSN
}

func (c *defaultConfig) DatabaseDriver() string {
	return c.data.DatabaseDriver
}

func (c *defaultConfig) PrivateKeyFile() string {
	return c.data.PrivateKeyFile
}

func (c *defaultConfig) PrivateKey() rsa.PrivateKey {
	return *c.privateKey
}

func (c *defaultConfig) Timezone() *time.Location {
	return c.location
}

func (c *defaultConfig) CancellationFeePercent() int64 {
	if c.data.CancellationFeePercent == nil {
		return defaultCancellationFeePercent
	}
	return *c.data.CancellationFeePercent
}

func (c *defaultConfig) WeeklyLateFeePercent() int64 {
	if c.data.WeeklyLateFeePercent == nil {
		return defaultWeeklyLateFeePercent
	}
	return *c.data.WeeklyLateFeePercent
}

func (c *defaultConfig) MaxLateFeePercent() int64 {
	if c.data.MaxLateFeePercent == nil {
		return defaultMaxLateFeePercent
	}
	return *c.data.MaxLateFeePercent
}

func (c *defaultConfig) PaymentDueDays() int {
	if c.data.PaymentDueDays == nil {
		return defaultPaymentDueDays
	}
	return *c.data.PaymentDueDays
}

func (c *defaultConfig) SlotDurationMinutes() int {
	if c.data.SlotDurationMinutes == nil {
		return defaultSlotDurationMinutes
	}
	return *c.data.SlotDurationMinutes
}

func (c *defaultConfig) BookingHorizonDays() int {
	if c.data.BookingHorizonDays == nil {
		return defaultBookingHorizonDays
	}
	return *c.data.BookingHorizonDays
}

func (c *defaultConfig) SweepIntervalMinutes() int {
	if c.data.SweepIntervalMinutes == nil {
		return defaultSweepIntervalMinutes
	}
	return *c.data.SweepIntervalMinutes
}

func (c *defaultConfig) loadPrivateKey(configPath string) error {
	path := c.PrivateKeyFile()
	if _, err := os.Stat(c.PrivateKeyFile()); os.IsNotExist(err) {
		path = fmt.Sprintf("%s/%s", configPath, path)
	}
	pemFile, err := ioutil.ReadFile(path)
	if err != nil {
		return err
	}
	privatePem, _ := pem.Decode(pemFile)
	var parsedKey interface{}
	parsedKey, err = x509.ParsePKCS1PrivateKey(privatePem.Bytes)
	if err != nil {
		return err
	}
	pk, isPrivateKey := parsedKey.(*rsa.PrivateKey)
	if !isPrivateKey {
		return errors.New("the given private key is not valid")
	}
	c.privateKey = pk
	return nil
}

func (c *defaultConfig) loadTimezone() error {
	if c.data.Timezone == "" {
		c.location = time.UTC
		return nil
	}
	location, err := time.LoadLocation(c.data.Timezone)
	if err != nil {
		return fmt.Errorf("the given timezone is not valid: %w", err)
	}
	c.location = location
	return nil
}

// Load loads the given configuration file.
func Load(configPath string) (Config, error) {
	data := &configData{}
	configFile, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("an occurred while loading config file: %w", err)
	}
	err = json.NewDecoder(configFile).Decode(data)
	if err != nil {
		return nil, fmt.Errorf("an occurred while parsing config file: %w", err)
	}
	configuration := &defaultConfig{data: data}
	if err = configuration.loadTimezone(); err != nil {
		return nil, err
	}
	if configuration.PrivateKeyFile() != "" {
		if err = configuration.loadPrivateKey(configPath); err != nil {
			return nil, err
		}
	}
	return configuration, nil
}

// MustLoad loads the given configuration file and if any error occurs, will panic.
func MustLoad(configPath string) Config {
	config, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	return config
}
