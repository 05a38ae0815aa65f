package csvimport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/flightlog/internal/core"
)

func at(clock string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", "2024-05-01 "+clock)
	if err != nil {
		panic(err)
	}
	return t
}

func glider(line int, id int64, dep time.Time, location string) *core.Record {
	return &core.Record{
		Line: line,
		Flight: core.Flight{
			ID: id, Type: core.TypeNormal, Mode: core.ModeLocal,
			DepartureTime: dep, LandingTime: dep.Add(time.Hour),
			DepartureLocation: location, LandingLocation: location,
		},
		Plane:        &core.Airplane{Registration: "D-1234"},
		Pilot:        &core.Pilot{LastName: "Doe", FirstName: "John"},
		LaunchMethod: &core.LaunchMethod{Name: "F-Schlepp"},
	}
}

func tow(line int, id int64, dep time.Time, location string) *core.Record {
	return &core.Record{
		Line: line,
		Flight: core.Flight{
			ID: id, Type: core.TypeTowflight, Mode: core.ModeOutbound,
			DepartureTime: dep, LandingTime: dep.Add(12 * time.Minute),
			DepartureLocation: location, LandingLocation: "EDHL",
		},
		Plane: &core.Airplane{Registration: "D-EFGH"},
		Pilot: &core.Pilot{LastName: "Tow", FirstName: "Tom"},
	}
}

func TestMergeTowflights_RoundTrip(t *testing.T) {
	parent := glider(2, 17, at("10:00"), "EDDH")
	tf := tow(3, 17, at("10:00"), "EDDH")
	other := glider(4, 18, at("12:00"), "EDDH")

	out, errs := MergeTowflights([]*core.Record{parent, tf, other})

	assert.Empty(t, errs)
	assert.Equal(t, []*core.Record{parent, other}, out)

	f := parent.Flight
	assert.Equal(t, tf.Flight.Mode, f.TowflightMode)
	assert.Equal(t, tf.Flight.LandingLocation, f.TowflightLandingLocation)
	assert.True(t, tf.Flight.LandingTime.Equal(f.TowflightLandingTime))
	assert.Same(t, tf.Plane, parent.Towplane)
	assert.Same(t, tf.Pilot, parent.Towpilot)
	assert.True(t, parent.IsAirtow())
	assert.Equal(t, "D-EFGH", parent.LaunchMethod.TowplaneRegistration)
}

func TestMergeTowflights_TowflightBeforeParent(t *testing.T) {
	tf1 := tow(2, 17, at("10:00"), "EDDH")
	tf2 := tow(3, 18, at("11:00"), "EDDH")
	p1 := glider(4, 17, at("10:00"), "EDDH")
	p2 := glider(5, 18, at("11:00"), "EDDH")

	out, errs := MergeTowflights([]*core.Record{tf1, tf2, p1, p2})

	assert.Empty(t, errs)
	assert.Equal(t, []*core.Record{p1, p2}, out)
	assert.Equal(t, core.ModeOutbound, p1.Flight.TowflightMode)
	assert.Equal(t, core.ModeOutbound, p2.Flight.TowflightMode)
}

func TestMergeTowflights_Unmerged(t *testing.T) {
	tests := []struct {
		name       string
		records    func() []*core.Record
		wantReason string
	}{
		{
			name: "departure location mismatch",
			records: func() []*core.Record {
				return []*core.Record{glider(2, 17, at("10:00"), "EDDH"), tow(3, 17, at("10:00"), "EDDF")}
			},
			wantReason: "departure location mismatch",
		},
		{
			name: "departure time mismatch",
			records: func() []*core.Record {
				return []*core.Record{glider(2, 17, at("10:00"), "EDDH"), tow(3, 17, at("10:05"), "EDDH")}
			},
			wantReason: "departure time mismatch",
		},
		{
			name: "no parent",
			records: func() []*core.Record {
				return []*core.Record{glider(2, 17, at("10:00"), "EDDH"), tow(3, 99, at("10:00"), "EDDH")}
			},
			wantReason: "no matching flight",
		},
		{
			name: "towflight without id",
			records: func() []*core.Record {
				return []*core.Record{glider(2, 0, at("10:00"), "EDDH"), tow(3, 0, at("10:00"), "EDDH")}
			},
			wantReason: "no matching flight",
		},
		{
			name: "ambiguous parent",
			records: func() []*core.Record {
				return []*core.Record{
					glider(2, 17, at("10:00"), "EDDH"),
					glider(3, 17, at("10:00"), "EDDH"),
					tow(4, 17, at("10:00"), "EDDH"),
				}
			},
			wantReason: "more than one matching flight",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.records()

			tf := in[len(in)-1]
			id := tf.Flight.ID
			out, errs := MergeTowflights(in)

			assert.Equal(t, in, out, "unmerged towflights must be kept")
			require.Len(t, errs, 1)
			assert.Equal(t, tt.wantReason, errs[0].Reason)
			assert.Equal(t, tf.Line, errs[0].Line)
			assert.Equal(t, id, errs[0].FlightID)
			assert.Zero(t, tf.Flight.ID, "unmerged towflight must not keep the glider's id")
			for _, rec := range in {
				if !IsTowflight(rec) {
					assert.Nil(t, rec.Towplane)
					assert.Empty(t, rec.Flight.TowflightMode)
				}
			}
		})
	}
}

func TestMergeTowflights_SecondTowflightRejected(t *testing.T) {
	parent := glider(2, 17, at("10:00"), "EDDH")
	first := tow(3, 17, at("10:00"), "EDDH")
	second := tow(4, 17, at("10:00"), "EDDH")

	out, errs := MergeTowflights([]*core.Record{parent, first, second})

	assert.Equal(t, []*core.Record{parent, second}, out)
	require.Len(t, errs, 1)
	assert.Equal(t, 4, errs[0].Line)
	assert.Same(t, first.Plane, parent.Towplane)
	assert.Equal(t, int64(17), parent.Flight.ID)
	assert.Zero(t, second.Flight.ID)
}

func TestDetachTowflights(t *testing.T) {
	parent := glider(2, 17, at("10:00"), "EDDH")
	tf := tow(3, 17, at("10:00"), "EDDH")

	DetachTowflights([]*core.Record{parent, tf})

	assert.Equal(t, int64(17), parent.Flight.ID)
	assert.Zero(t, tf.Flight.ID)
	assert.Empty(t, parent.Flight.TowflightMode)
}

func TestMergeError_Error(t *testing.T) {
	err := MergeError{Line: 3, FlightID: 17, Reason: "departure time mismatch"}
	assert.Equal(t, "line 3: towflight 17: departure time mismatch", err.Error())
}
