package report

import (
	"time"

	client "github.com/influxdata/influxdb1-client/v2"
	"github.com/sirupsen/logrus"

	"github.com/wuwbobo2021/simple-battery-voltage-alarm/internal/alarm"
)

// InfluxSink mirrors readings and session summaries into InfluxDB: one
// point per reading in the "battery" measurement and one per flushed
// session in "battery_session". Write failures are logged and dropped;
// the local accounting never depends on the database being reachable.
type InfluxSink struct {
	conn     client.Client
	database string
	log      *logrus.Logger
}

// OpenInflux connects to an InfluxDB 1.x endpoint.
func OpenInflux(address, username, password, database string, log *logrus.Logger) (*InfluxSink, error) {
	c, err := client.NewHTTPClient(client.HTTPConfig{
		Addr:     address,
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, err
	}
	return &InfluxSink{conn: c, database: database, log: log}, nil
}

func (s *InfluxSink) Reading(r alarm.Reading) {
	fields := map[string]interface{}{
		"voltage":           r.Voltage,
		"effective_voltage": r.E,
		"current":           r.Current,
		"power":             r.Power(),
		"out_of_range":      r.OutOfRange,
	}
	if r.Capacity >= 0 {
		fields["capacity"] = r.Capacity
	}
	tags := map[string]string{"status": r.StatusWord()}

	s.write("battery", tags, fields, r.Time)
}

func (s *InfluxSink) SessionFlushed(rep *alarm.SessionReport, _ []alarm.Reading) {
	status := "discharging"
	if rep.Charging {
		status = "charging"
	}
	fields := map[string]interface{}{
		"duration_seconds":     rep.Duration().Seconds(),
		"readings":             rep.Readings,
		"out_of_range_percent": rep.OutOfRangePercent,
		"avg_power":            rep.AvgPower,
		"peak_power":           rep.PeakPower,
		"energy_wh":            rep.EnergyWh,
		"charge_mah":           rep.ChargeMAh,
		"loss_wh":              rep.LossWh,
	}
	if rep.EstFullWh != 0 {
		fields["est_full_wh"] = rep.EstFullWh
		fields["est_full_mah"] = rep.EstFullMAh
	}

	s.write("battery_session", map[string]string{"status": status}, fields, rep.End)
}

func (s *InfluxSink) write(measurement string, tags map[string]string, fields map[string]interface{}, ts time.Time) {
	bp, err := client.NewBatchPoints(client.BatchPointsConfig{
		Database:  s.database,
		Precision: "s",
	})
	if err != nil {
		s.log.Error("Error building InfluxDB batch: ", err)
		return
	}
	pt, err := client.NewPoint(measurement, tags, fields, ts)
	if err != nil {
		s.log.Error("Error building InfluxDB point: ", err)
		return
	}
	bp.AddPoint(pt)
	if err := s.conn.Write(bp); err != nil {
		s.log.Error("Error writing to InfluxDB: ", err)
	}
}

func (s *InfluxSink) Close() error {
	return s.conn.Close()
}
