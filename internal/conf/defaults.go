// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "Pirdfy")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "pirdfy.log")
	viper.SetDefault("main.log.maxsizemb", 100)
	viper.SetDefault("main.log.maxbackups", 3)
	viper.SetDefault("main.log.maxagedays", 28)

	viper.SetDefault("capture.interval", 1)
	viper.SetDefault("capture.failurethreshold", 5)
	viper.SetDefault("capture.devicetimeout", 5)
	viper.SetDefault("capture.photopolicy", PhotoPolicyAlways)
	viper.SetDefault("capture.cameras", []map[string]any{
		{"id": 0, "name": "Primary", "enabled": true},
	})

	viper.SetDefault("detection.backend", "stub")
	viper.SetDefault("detection.threshold", 0.5)
	viper.SetDefault("detection.timeout", 5)
	viper.SetDefault("detection.croppad", 20)
	viper.SetDefault("detection.concurrent", false)

	viper.SetDefault("video.enabled", true)
	viper.SetDefault("video.duration", 20)
	viper.SetDefault("video.cooldown", 10)

	viper.SetDefault("storage.datapath", "data")
	viper.SetDefault("storage.retention.enabled", true)
	viper.SetDefault("storage.retention.photomaxagedays", 30)
	viper.SetDefault("storage.retention.videomaxagedays", 7)
	viper.SetDefault("storage.retention.intervalminutes", 60)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "pirdfy.db")

	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "pirdfy")
	viper.SetDefault("output.mysql.password", "secret")
	viper.SetDefault("output.mysql.database", "pirdfy")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", 3306)

	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.intervalseconds", 60)
	viper.SetDefault("monitoring.lowpowerthreshold", 20.0)
	viper.SetDefault("monitoring.intervalmultiplier", 5)
	viper.SetDefault("monitoring.disablevideo", true)

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", "0.0.0.0:8090")

	viper.SetDefault("notification.enabled", false)
	viper.SetDefault("notification.urls", []string{})
	viper.SetDefault("notification.ondetection", true)
	viper.SetDefault("notification.dedupwindowminute", 15)

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", "pirdfy")
	viper.SetDefault("mqtt.username", "pirdfy")
	viper.SetDefault("mqtt.password", "secret")
}
