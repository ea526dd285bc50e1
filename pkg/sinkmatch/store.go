package sinkmatch

import (
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/stalexteam/sinkmatch/pkg/sinkmatch/util"
)

// FileStore is the file-backed configuration store: device records in
// devices.yaml, player records in players.yaml. It owns both record sets;
// the matching core mutates and saves only through it.
type FileStore struct {
	logger *zap.SugaredLogger

	lock    sync.Mutex
	devices map[string]DeviceRecord
	players map[string]PlayerRecord

	devicesViper *viper.Viper
	playersViper *viper.Viper

	devicesFilepath string
	playersFilepath string

	reloadConsumers    []chan bool
	stopWatcherChannel chan bool
}

const (
	devicesConfigName = "devices"
	playersConfigName = "players"

	storeConfigType = "yaml"

	configKey_Devices = "devices"
	configKey_Players = "players"

	recordKey_Serial       = "serial"
	recordKey_BusPath      = "bus_path"
	recordKey_VendorID     = "vendor_id"
	recordKey_ProductID    = "product_id"
	recordKey_ALSALongCard = "alsa_long_card_name"
	recordKey_SinkName     = "sink_name"
	recordKey_Alias        = "alias"
	recordKey_Hidden       = "hidden"
	recordKey_Device       = "device"
)

// NewFileStore creates a store reading and writing YAML files under the
// given directory
func NewFileStore(logger *zap.SugaredLogger, configDir string) (*FileStore, error) {
	logger = logger.Named("store")

	devicesViper := viper.New()
	devicesViper.SetConfigName(devicesConfigName)
	devicesViper.SetConfigType(storeConfigType)
	devicesViper.AddConfigPath(configDir)
	devicesViper.SetDefault(configKey_Devices, map[string]interface{}{})

	playersViper := viper.New()
	playersViper.SetConfigName(playersConfigName)
	playersViper.SetConfigType(storeConfigType)
	playersViper.AddConfigPath(configDir)
	playersViper.SetDefault(configKey_Players, map[string]interface{}{})

	s := &FileStore{
		logger:             logger,
		devices:            map[string]DeviceRecord{},
		players:            map[string]PlayerRecord{},
		devicesViper:       devicesViper,
		playersViper:       playersViper,
		devicesFilepath:    path.Join(configDir, devicesConfigName+"."+storeConfigType),
		playersFilepath:    path.Join(configDir, playersConfigName+"."+storeConfigType),
		reloadConsumers:    []chan bool{},
		stopWatcherChannel: make(chan bool),
	}

	logger.Debug("Created file store instance")

	return s, nil
}

// Load reads both config files from disk. A missing file is not an error:
// the corresponding record set simply starts empty and is created on first
// save.
func (s *FileStore) Load() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if util.FileExists(s.devicesFilepath) {
		if err := s.devicesViper.ReadInConfig(); err != nil {
			s.logger.Warnw("Viper failed to read devices config", "error", err)
			return fmt.Errorf("read devices config: %w", err)
		}
	} else {
		s.logger.Debugw("Devices config not found, starting empty", "path", s.devicesFilepath)
	}

	if util.FileExists(s.playersFilepath) {
		if err := s.playersViper.ReadInConfig(); err != nil {
			s.logger.Warnw("Viper failed to read players config", "error", err)
			return fmt.Errorf("read players config: %w", err)
		}
	} else {
		s.logger.Debugw("Players config not found, starting empty", "path", s.playersFilepath)
	}

	s.populateFromVipers()

	s.logger.Infow("Loaded config store",
		"devices", len(s.devices),
		"players", len(s.players))

	return nil
}

// Devices returns a copy of the persisted device records keyed by device key
func (s *FileStore) Devices() map[string]DeviceRecord {
	s.lock.Lock()
	defer s.lock.Unlock()

	devices := make(map[string]DeviceRecord, len(s.devices))
	for deviceKey, rec := range s.devices {
		devices[deviceKey] = rec.WithIdentifiers(rec.Identifiers)
	}

	return devices
}

// Players returns a copy of the persisted player records keyed by name
func (s *FileStore) Players() map[string]PlayerRecord {
	s.lock.Lock()
	defer s.lock.Unlock()

	players := make(map[string]PlayerRecord, len(s.players))
	for name, player := range s.players {
		players[name] = player
	}

	return players
}

// DeviceBySinkName returns the record whose last-known handle matches the
// given sink name, or nil
func (s *FileStore) DeviceBySinkName(sinkName string) *DeviceRecord {
	s.lock.Lock()
	defer s.lock.Unlock()

	for _, rec := range s.devices {
		if equalFold(rec.SinkName, sinkName) {
			copied := rec.WithIdentifiers(rec.Identifiers)
			return &copied
		}
	}

	return nil
}

// UpdateDeviceInfo overwrites a record's identifiers and handle from a live
// device. Unknown keys create a new record. Does not save.
func (s *FileStore) UpdateDeviceInfo(deviceKey string, dev LiveDevice) {
	s.lock.Lock()
	defer s.lock.Unlock()

	rec := s.devices[deviceKey]
	rec.Key = deviceKey
	rec = rec.WithIdentifiers(dev.Identifiers).WithSinkName(dev.ID)

	s.devices[deviceKey] = rec
}

// UpdatePlayerDevice rewrites a player's target handle, optionally saving
// the player set immediately
func (s *FileStore) UpdatePlayerDevice(name string, sinkName string, save bool) error {
	s.lock.Lock()

	player := s.players[name]
	player.Name = name
	player.Device = sinkName
	s.players[name] = player

	s.lock.Unlock()

	if save {
		return s.Save()
	}

	return nil
}

// Save persists the player records
func (s *FileStore) Save() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	playersMap := map[string]interface{}{}
	for name, player := range s.players {
		playersMap[name] = map[string]interface{}{
			recordKey_Device: player.Device,
		}
	}

	if err := writeConfigFile(s.playersFilepath, configKey_Players, playersMap); err != nil {
		s.logger.Warnw("Failed to write players config", "error", err)
		return fmt.Errorf("write players config: %w", err)
	}

	s.logger.Debugw("Saved players config", "players", len(s.players))

	return nil
}

// SaveDevices persists the device records
func (s *FileStore) SaveDevices() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	devicesMap := map[string]interface{}{}
	for deviceKey, rec := range s.devices {
		devicesMap[deviceKey] = recordToMap(rec)
	}

	if err := writeConfigFile(s.devicesFilepath, configKey_Devices, devicesMap); err != nil {
		s.logger.Warnw("Failed to write devices config", "error", err)
		return fmt.Errorf("write devices config: %w", err)
	}

	s.logger.Debugw("Saved devices config", "devices", len(s.devices))

	return nil
}

// writeConfigFile marshals through a throwaway viper instance. Writing via
// the reader vipers would leave an override layer behind that masks every
// later reload of the file.
func writeConfigFile(filepath string, key string, value map[string]interface{}) error {
	out := viper.New()
	out.SetConfigType(storeConfigType)
	out.Set(key, value)

	return out.WriteConfigAs(filepath)
}

// SubscribeToChanges allows external components to receive updates when the
// store reloads after an on-disk change
func (s *FileStore) SubscribeToChanges() chan bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	c := make(chan bool)
	s.reloadConsumers = append(s.reloadConsumers, c)

	return c
}

// WatchFileChanges starts watching the devices config file for external
// edits and reloads both record sets when they happen. Blocks until
// StopWatchingFiles is called.
func (s *FileStore) WatchFileChanges() {
	s.logger.Debugw("Starting to watch store files for changes", "path", s.devicesFilepath)

	const (
		minTimeBetweenReloadAttempts = time.Millisecond * 500
		delayBetweenEventAndReload   = time.Millisecond * 50
	)

	lastAttemptedReload := time.Now()

	s.devicesViper.WatchConfig()
	s.devicesViper.OnConfigChange(func(event fsnotify.Event) {
		if event.Op&fsnotify.Write == fsnotify.Write {
			now := time.Now()

			// many editors write a file twice; debounce
			if lastAttemptedReload.Add(minTimeBetweenReloadAttempts).Before(now) {
				s.logger.Debugw("Store file modified, attempting reload", "event", event)

				// let the editor flush the new contents to disk first
				<-time.After(delayBetweenEventAndReload)

				if err := s.Load(); err != nil {
					s.logger.Warnw("Failed to reload store", "error", err)
				} else {
					s.logger.Info("Reloaded store successfully")
					s.onReloaded()
				}

				lastAttemptedReload = now
			}
		}
	})

	<-s.stopWatcherChannel
	s.logger.Debug("Stopping store file watcher")
	s.devicesViper.OnConfigChange(nil)
}

// StopWatchingFiles signals the filesystem watcher to stop
func (s *FileStore) StopWatchingFiles() {
	s.stopWatcherChannel <- true

	s.lock.Lock()
	defer s.lock.Unlock()

	for _, ch := range s.reloadConsumers {
		close(ch)
	}
	s.reloadConsumers = nil
}

func (s *FileStore) onReloaded() {
	s.lock.Lock()
	consumers := make([]chan bool, len(s.reloadConsumers))
	copy(consumers, s.reloadConsumers)
	s.lock.Unlock()

	for _, consumer := range consumers {
		select {
		case consumer <- true:
		default:
			// consumer is busy, it'll catch the next one
		}
	}
}

// must be called with the lock held
func (s *FileStore) populateFromVipers() {
	s.devices = map[string]DeviceRecord{}

	for deviceKey, raw := range s.devicesViper.GetStringMap(configKey_Devices) {
		// yaml nests records as map[interface{}]interface{}, cast normalizes
		fields, err := cast.ToStringMapE(raw)
		if err != nil {
			s.logger.Warnw("Malformed device record in config, skipping", "deviceKey", deviceKey, "error", err)
			continue
		}

		s.devices[deviceKey] = recordFromMap(deviceKey, fields)
	}

	s.players = map[string]PlayerRecord{}

	for name, raw := range s.playersViper.GetStringMap(configKey_Players) {
		fields, err := cast.ToStringMapE(raw)
		if err != nil {
			s.logger.Warnw("Malformed player record in config, skipping", "player", name, "error", err)
			continue
		}

		s.players[name] = PlayerRecord{
			Name:   name,
			Device: stringField(fields, recordKey_Device),
		}
	}
}

func recordToMap(rec DeviceRecord) map[string]interface{} {
	fields := map[string]interface{}{
		recordKey_SinkName: rec.SinkName,
		recordKey_Alias:    rec.Alias,
		recordKey_Hidden:   rec.Hidden,
	}

	if rec.Identifiers != nil {
		fields[recordKey_Serial] = rec.Identifiers.Serial
		fields[recordKey_BusPath] = rec.Identifiers.BusPath
		fields[recordKey_VendorID] = rec.Identifiers.VendorID
		fields[recordKey_ProductID] = rec.Identifiers.ProductID
		fields[recordKey_ALSALongCard] = rec.Identifiers.ALSALongCardName
	}

	return fields
}

func recordFromMap(deviceKey string, fields map[string]interface{}) DeviceRecord {
	ids := &DeviceIdentifiers{
		Serial:           stringField(fields, recordKey_Serial),
		BusPath:          stringField(fields, recordKey_BusPath),
		VendorID:         stringField(fields, recordKey_VendorID),
		ProductID:        stringField(fields, recordKey_ProductID),
		ALSALongCardName: stringField(fields, recordKey_ALSALongCard),
	}

	if ids.Empty() {
		ids = nil
	}

	return DeviceRecord{
		Key:         deviceKey,
		Identifiers: ids,
		SinkName:    stringField(fields, recordKey_SinkName),
		Alias:       stringField(fields, recordKey_Alias),
		Hidden:      boolField(fields, recordKey_Hidden),
	}
}

// YAML scalars arrive as interface{} with whatever type the parser chose
func stringField(fields map[string]interface{}, key string) string {
	if value, ok := fields[key]; ok {
		if str, ok := value.(string); ok {
			return str
		}

		if value != nil {
			return fmt.Sprintf("%v", value)
		}
	}

	return ""
}

func boolField(fields map[string]interface{}, key string) bool {
	if value, ok := fields[key]; ok {
		if b, ok := value.(bool); ok {
			return b
		}
	}

	return false
}
