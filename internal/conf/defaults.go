// SPDX-License-Identifier: EPL-2.0

package conf

import (
	"time"

	"github.com/spf13/viper"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("input", "")

	v.SetDefault("device.backend", "auto")
	v.SetDefault("device.name", "default")
	v.SetDefault("device.samplerate", 44100)
	v.SetDefault("device.channels", 2)
	v.SetDefault("device.periodframes", 0)
	v.SetDefault("device.nommap", false)
	v.SetDefault("device.realtime", true)

	v.SetDefault("buffer.periods", 16)
	v.SetDefault("buffer.highwaterperiods", 8)
	v.SetDefault("buffer.lowwaterperiods", 4)
	v.SetDefault("buffer.maxperiods", 64)
	v.SetDefault("buffer.throttletimeout", 5*time.Second)
	v.SetDefault("buffer.overflowpolicy", "reject")

	v.SetDefault("pipeline.chunkframes", 1024)
	v.SetDefault("pipeline.maxconsecutiveerrors", 10)
	v.SetDefault("pipeline.overflowretries", 3)

	v.SetDefault("dump.enabled", false)
	v.SetDefault("dump.path", "output.pcm")
	v.SetDefault("dump.format", "raw")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetDefault("metrics.listen", "")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.dsn", "")
	v.SetDefault("telemetry.environment", "production")
	v.SetDefault("telemetry.samplerate", 1.0)
}
