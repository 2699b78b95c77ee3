package alarm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var sessionStart = time.Date(2021, 8, 10, 10, 0, 0, 0, time.Local)

// discharge samples: 3.75 V effective at -0.5 A is -1.875 W.
func dischargeReading(n int) Reading {
	return Reading{
		Time:     sessionStart.Add(time.Duration(n) * 5 * time.Second),
		Voltage:  3.7,
		Current:  -0.5,
		E:        3.75,
		Capacity: -1,
	}
}

func chargeReading(n int) Reading {
	return Reading{
		Time:     sessionStart.Add(time.Duration(n) * 5 * time.Second),
		Charging: true,
		Voltage:  3.9,
		Current:  0.5,
		E:        3.85,
		Capacity: -1,
	}
}

func TestFlipEndsSessionAndSeedsNext(t *testing.T) {
	acc := NewAccumulator(ModeAutomatic, 5*time.Second)
	for n := 0; n < 6; n++ {
		require.Nil(t, acc.Ingest(dischargeReading(n), false))
	}

	f := acc.Ingest(chargeReading(6), false)
	require.NotNil(t, f)
	require.False(t, f.Report.Charging)
	require.Equal(t, 6, f.Report.Readings)
	require.Len(t, f.Readings, 6)
	require.Equal(t, dischargeReading(0).Time, f.Report.Start)
	require.Equal(t, dischargeReading(5).Time, f.Report.End)

	// 6 integrated intervals of 5 s at -1.875 W.
	require.InDelta(t, -1.875*30/3600, f.Report.EnergyWh, 1e-9)
	require.InDelta(t, -0.5*1000*30/3600, f.Report.ChargeMAh, 1e-6)
	require.InDelta(t, 0.05*0.5*30/3600, f.Report.LossWh, 1e-9)

	// The flipping reading seeds the next session.
	require.Equal(t, 1, acc.Len())
	require.Nil(t, acc.Ingest(chargeReading(7), false))
	require.Equal(t, 2, acc.Len())
}

func TestGapClampAndFlush(t *testing.T) {
	acc := NewAccumulator(ModeAutomatic, 5*time.Second)
	for n := 0; n < 5; n++ {
		require.Nil(t, acc.Ingest(dischargeReading(n), false))
	}

	// The host slept for 10 minutes; at most 25 s of it may be charged
	// against the last sample, and the session ends.
	late := dischargeReading(0)
	late.Time = sessionStart.Add(10 * time.Minute)
	f := acc.Ingest(late, false)
	require.NotNil(t, f)
	require.Equal(t, 5, f.Report.Readings)
	require.Equal(t, 0, acc.Len())

	// 4 normal intervals plus one clamped to 25 s.
	require.InDelta(t, -1.875*(20+25)/3600, f.Report.EnergyWh, 1e-9)
}

func TestShortSessionDiscarded(t *testing.T) {
	acc := NewAccumulator(ModeAutomatic, 5*time.Second)
	for n := 0; n < 3; n++ {
		require.Nil(t, acc.Ingest(dischargeReading(n), false))
	}
	require.Nil(t, acc.Ingest(dischargeReading(3), true))
	require.Equal(t, 0, acc.Len())
}

func TestShutdownFlushIncludesFinalReading(t *testing.T) {
	acc := NewAccumulator(ModeAutomatic, 5*time.Second)
	for n := 0; n < 4; n++ {
		require.Nil(t, acc.Ingest(dischargeReading(n), false))
	}
	f := acc.Ingest(dischargeReading(4), true)
	require.NotNil(t, f)
	require.Equal(t, 5, f.Report.Readings)
	require.Equal(t, dischargeReading(4).Time, f.Report.End)
	require.Equal(t, 0, acc.Len())
}

func TestFullCapacityEstimate(t *testing.T) {
	acc := NewAccumulator(ModeAutomatic, 5*time.Second)
	var f *Flush
	for n := 0; n <= 10; n++ {
		r := dischargeReading(n)
		r.Capacity = 80 - n // 80 down to 70
		f = acc.Ingest(r, n == 10)
	}
	require.NotNil(t, f)
	require.Equal(t, 80, f.Report.StartCapacity)
	require.Equal(t, 70, f.Report.EndCapacity)

	wh := -1.875 * 50 / 3600
	require.InDelta(t, wh*100/-10, f.Report.EstFullWh, 1e-9)
	require.InDelta(t, -0.5*1000*50/3600*100/-10, f.Report.EstFullMAh, 1e-6)
}

func TestSmallCapacityDeltaNoEstimate(t *testing.T) {
	acc := NewAccumulator(ModeAutomatic, 5*time.Second)
	var f *Flush
	for n := 0; n <= 6; n++ {
		r := dischargeReading(n)
		r.Capacity = 80
		if n > 2 {
			r.Capacity = 79
		}
		f = acc.Ingest(r, n == 6)
	}
	require.NotNil(t, f)
	require.Equal(t, 0.0, f.Report.EstFullWh)
	require.Equal(t, 0.0, f.Report.EstFullMAh)
}

func TestManualSwitchDebounceTrim(t *testing.T) {
	acc := NewAccumulator(ModeManualSwitch, 5*time.Second)
	var f *Flush
	for n := 0; n < 10; n++ {
		r := dischargeReading(n)
		if n >= 8 {
			// The charger went on before the user flipped the switch.
			r.Voltage = 3.9
			r.E = 3.95
			r.OutOfRange = true
		}
		f = acc.Ingest(r, n == 9)
	}
	require.NotNil(t, f)
	require.Equal(t, 8, f.Report.Readings)
	require.Len(t, f.Readings, 8)
	require.Equal(t, dischargeReading(7).Time, f.Report.End)
	require.Equal(t, 0.0, f.Report.OutOfRangePercent)

	// Capacity is meaningless in manual-switch mode.
	require.Equal(t, -1, f.Report.StartCapacity)
	require.Equal(t, -1, f.Report.EndCapacity)
}

func TestManualSwitchChargingHasNoLoss(t *testing.T) {
	acc := NewAccumulator(ModeManualSwitch, 5*time.Second)
	var f *Flush
	for n := 0; n < 6; n++ {
		f = acc.Ingest(chargeReading(n), n == 5)
	}
	require.NotNil(t, f)
	require.Equal(t, 0.0, f.Report.LossWh)
	require.Equal(t, 0.0, f.Report.Efficiency)
}

func TestChargingEnergyNetOfLoss(t *testing.T) {
	acc := NewAccumulator(ModeAutomatic, 5*time.Second)
	var f *Flush
	for n := 0; n < 6; n++ {
		f = acc.Ingest(chargeReading(n), n == 5)
	}
	require.NotNil(t, f)

	wh := 3.9 * 0.5 * 25 / 3600
	rwh := 0.05 * 0.5 * 25 / 3600
	require.InDelta(t, wh-rwh, f.Report.EnergyWh, 1e-9)
	require.InDelta(t, rwh, f.Report.LossWh, 1e-9)
	// Round((1 - rwh/wh) * 100): the loss is ~1.3% here.
	require.Equal(t, 99.0, f.Report.Efficiency)
}

func TestPeakPowerKeepsSign(t *testing.T) {
	acc := NewAccumulator(ModeAutomatic, 5*time.Second)
	var f *Flush
	for n := 0; n < 5; n++ {
		r := dischargeReading(n)
		if n == 2 {
			r.Current = -1.5 // peak magnitude
		}
		f = acc.Ingest(r, n == 4)
	}
	require.NotNil(t, f)
	require.InDelta(t, 3.75*-1.5, f.Report.PeakPower, 1e-9)
}

func TestNegativeTimeStepAddsNothing(t *testing.T) {
	acc := NewAccumulator(ModeAutomatic, 5*time.Second)
	require.Nil(t, acc.Ingest(dischargeReading(1), false))

	back := dischargeReading(0) // earlier than the previous reading
	require.Nil(t, acc.Ingest(back, false))
	require.Equal(t, 2, acc.Len())
}

func TestAveragePower(t *testing.T) {
	acc := NewAccumulator(ModeAutomatic, 5*time.Second)
	var f *Flush
	for n := 0; n < 5; n++ {
		f = acc.Ingest(dischargeReading(n), n == 4)
	}
	require.NotNil(t, f)
	// 4 intervals integrated over a 20 s span at constant power.
	require.InDelta(t, -1.875, f.Report.AvgPower, 1e-9)
}
