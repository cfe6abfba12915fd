package vehicle

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxd309/tampere-platoon/internal/kinematics"
)

const eps = 1e-9

// expectedFollowerAccel evaluates the Tampere law directly from the vehicle's
// committed state and its leader's.
func expectedFollowerAccel(v *Vehicle, c1, c2, c3, vDesired float64) float64 {
	var gap, spacing float64
	if l := v.Leader(); l != nil {
		gap = l.VLast() - v.VLast()
		spacing = l.XLast() - v.XLast()
	}
	desired := 1/kinematics.JamDensity + v.VLast()/(kinematics.ShockwaveSpeed*kinematics.JamDensity)
	return math.Min(c1*gap+c2*(spacing-desired), c3*(vDesired-v.VLast()))
}

func TestNew_Defaults(t *testing.T) {
	ids := NewIDCounter()
	leader := New(ids, 0, 20)
	follower := New(ids, -30, 18, WithLeader(leader))

	assert.Equal(t, ID(0), leader.ID())
	assert.Equal(t, ID(1), follower.ID())
	assert.Equal(t, RoleControlled, leader.Role())
	assert.Equal(t, RoleFollower, follower.Role())
	assert.Equal(t, kinematics.DefaultTampere(), follower.Model())
	assert.Same(t, leader, follower.Leader())
	assert.Nil(t, leader.Leader())

	assert.Equal(t, 0.0, follower.ALast())
	assert.Equal(t, 0.0, follower.A())
	assert.Equal(t, 0.0, follower.Control())
	assert.Equal(t, 25.0, follower.FreeFlowSpeed())
	assert.Equal(t, 6.25, follower.ShockwaveSpeed())
	assert.Equal(t, 0.16, follower.JamDensity())
	assert.InDelta(t, 6.25, follower.MinSpacing(), eps)
}

func TestLeaderless_SpeedGapAndSpacingAreZero(t *testing.T) {
	ids := NewIDCounter()
	New(ids, 0, 0) // take id 0 so the vehicle under test follows the law
	v := New(ids, 100, 12)

	for i := 0; i < 10; i++ {
		assert.Equal(t, 0.0, v.SpeedGap())
		assert.Equal(t, 0.0, v.Spacing())
		v.Step(25, 0)
	}
}

func TestDesiredSpacing_MatchesFormula(t *testing.T) {
	ids := NewIDCounter()
	for _, speed := range []float64{0, 3.5, 18, 25, 40} {
		v := New(ids, 0, speed)
		want := 1/kinematics.JamDensity + speed/(kinematics.ShockwaveSpeed*kinematics.JamDensity)
		assert.Equal(t, want, v.DesiredSpacing())
	}
}

func TestFirstStep_IsConstantVelocityCarry(t *testing.T) {
	ids := NewIDCounter()
	leader := New(ids, 5, 20)
	follower := New(ids, -30, 18, WithLeader(leader))

	follower.Step(25, 0)

	assert.InDelta(t, -30+18*kinematics.TimeStep, follower.XLast(), eps)
	assert.Equal(t, 18.0, follower.VLast())
	assert.Equal(t, 0.0, follower.ALast())
}

func TestStep_ReferenceScenario(t *testing.T) {
	ids := NewIDCounter()
	leader := New(ids, 0, 20)
	follower := New(ids, -30, 18, WithCoefficients(0.5, 0.5, 0.5), WithLeader(leader))

	leader.Step(25, 0)

	assert.Equal(t, 0.0, leader.A())
	assert.InDelta(t, 20*kinematics.TimeStep, leader.XLast(), eps)
	assert.Equal(t, 20.0, leader.VLast())

	follower.Step(25, 0)

	// The follower commits its own constant-velocity step before reading the leader.
	assert.InDelta(t, -12.0, follower.XLast(), eps)
	assert.InDelta(t, 2.0, follower.SpeedGap(), eps)
	assert.InDelta(t, 32.0, follower.Spacing(), eps)
	assert.InDelta(t, 24.25, follower.DesiredSpacing(), eps)
	assert.InDelta(t, 0.5*2+0.5*(32-24.25), follower.CongestedAcceleration(), eps)
	assert.InDelta(t, 3.5, follower.FreeAcceleration(25), eps)
	assert.InDelta(t, 3.5, follower.A(), eps)

	// Tentative state implied by the new proposal.
	assert.InDelta(t, 21.5, follower.V(), eps)
	assert.InDelta(t, -12+21.5, follower.X(), eps)
}

func TestStep_FollowerAccelerationIsTampereMin(t *testing.T) {
	const c1, c2, c3 = 0.4, 0.3, 0.6
	ids := NewIDCounter()
	leader := New(ids, 0, 22)
	f1 := New(ids, -25, 20, WithCoefficients(c1, c2, c3), WithLeader(leader))
	f2 := New(ids, -60, 24, WithCoefficients(c1, c2, c3), WithLeader(f1))

	controls := []float64{0.3, 0.3, -0.5, -0.5, 0, 0.2, 0, 0}
	for i, control := range controls {
		vDesired := 20 + float64(i)
		leader.Step(vDesired, control)
		f1.Step(vDesired, 0)
		f2.Step(vDesired, 0)

		assert.InDelta(t, control, leader.A(), eps, "tick %d", i)
		assert.InDelta(t, expectedFollowerAccel(f1, c1, c2, c3, vDesired), f1.A(), eps, "tick %d", i)
		assert.InDelta(t, expectedFollowerAccel(f2, c1, c2, c3, vDesired), f2.A(), eps, "tick %d", i)
	}
}

func TestStep_ControlledVehicleIgnoresDesiredSpeed(t *testing.T) {
	for _, vDesired := range []float64{0, 10, 25, 100} {
		ids := NewIDCounter()
		leader := New(ids, 0, 20)
		leader.Step(vDesired, 0.25)
		assert.Equal(t, 0.25, leader.A())
		assert.Equal(t, 0.25, leader.Control())
	}
}

func TestStep_FollowerIgnoresControl(t *testing.T) {
	ids := NewIDCounter()
	leader := New(ids, 0, 20)
	follower := New(ids, -40, 20, WithLeader(leader))

	follower.Step(25, 9)

	assert.Equal(t, 9.0, follower.Control())
	assert.InDelta(t, expectedFollowerAccel(follower, 0.5, 0.5, 0.5, 25), follower.A(), eps)
}

func TestStep_CommitsPreviousProposal(t *testing.T) {
	ids := NewIDCounter()
	leader := New(ids, 0, 10)

	leader.Step(25, 0.5)
	x, v := leader.X(), leader.V()

	leader.Step(25, 0)
	assert.Equal(t, x, leader.XLast())
	assert.Equal(t, v, leader.VLast())
	assert.Equal(t, 0.5, leader.ALast())
	assert.Equal(t, 0.0, leader.A())
}

func TestWithRole_OverridesIdentity(t *testing.T) {
	ids := NewIDCounter()
	head := New(ids, 0, 20, WithRole(RoleFollower))
	mid := New(ids, -40, 20, WithLeader(head), WithRole(RoleControlled))

	head.Step(25, 1)
	mid.Step(25, -0.3)

	assert.False(t, head.IsControlled())
	assert.InDelta(t, expectedFollowerAccel(head, 0.5, 0.5, 0.5, 25), head.A(), eps)
	assert.True(t, mid.IsControlled())
	assert.Equal(t, -0.3, mid.A())
}

func TestRoleSurvivesCounterReset(t *testing.T) {
	ids := NewIDCounter()
	leader := New(ids, 0, 20)
	ids.Reset()
	other := New(ids, 100, 20)

	// Both got ID 0; each keeps the role it was constructed with.
	assert.Equal(t, leader.ID(), other.ID())
	assert.True(t, leader.IsControlled())
	assert.True(t, other.IsControlled())
}

func TestWithBounds_ClampsCarFollowingOnly(t *testing.T) {
	ids := NewIDCounter()
	leader := New(ids, 0, 20, WithBounds(kinematics.DefaultBounds()))
	bounded := New(ids, -30, 18, WithLeader(leader), WithBounds(kinematics.DefaultBounds()))
	free := New(ids, -30, 18, WithLeader(leader))

	leader.Step(25, 2)
	bounded.Step(25, 0)
	free.Step(25, 0)

	assert.Equal(t, 2.0, leader.A(), "control is not clamped")
	assert.InDelta(t, 3.5, free.A(), eps)
	assert.Equal(t, kinematics.AccelMax, bounded.A())
}

func TestSetLeader_Rebinds(t *testing.T) {
	ids := NewIDCounter()
	a := New(ids, 100, 20)
	b := New(ids, 50, 15)
	f := New(ids, 0, 10, WithLeader(a))

	assert.InDelta(t, 100.0, f.Spacing(), eps)
	f.SetLeader(b)
	assert.InDelta(t, 50.0, f.Spacing(), eps)
	assert.InDelta(t, 5.0, f.SpeedGap(), eps)
	f.SetLeader(nil)
	assert.Equal(t, 0.0, f.Spacing())
}

func TestWithModel_UsesCustomLaw(t *testing.T) {
	ids := NewIDCounter()
	New(ids, 0, 0)
	v := New(ids, 0, 10, WithModel(constantLaw(0.7)))

	v.Step(25, 0)
	assert.Equal(t, 0.7, v.A())
	// Tampere terms fall back to default gains for non-Tampere models.
	assert.InDelta(t, 0.5*(25-10.0), v.FreeAcceleration(25), eps)
}

// Committed state after a tick does not depend on the order vehicles are stepped.
func TestStep_CommittedStateIsOrderIndependent(t *testing.T) {
	build := func() []*Vehicle {
		ids := NewIDCounter()
		vs := []*Vehicle{New(ids, 0, 20)}
		for i := 1; i < 4; i++ {
			vs = append(vs, New(ids, -35*float64(i), 20-float64(i), WithLeader(vs[i-1])))
		}
		// Prime non-zero proposals.
		for _, v := range vs {
			v.Step(25, 0.2)
		}
		return vs
	}

	forward, reverse := build(), build()
	for _, v := range forward {
		v.Step(25, 0.1)
	}
	for i := len(reverse) - 1; i >= 0; i-- {
		reverse[i].Step(25, 0.1)
	}

	require.Len(t, reverse, len(forward))
	for i := range forward {
		assert.Equal(t, forward[i].XLast(), reverse[i].XLast(), "vehicle %d", i)
		assert.Equal(t, forward[i].VLast(), reverse[i].VLast(), "vehicle %d", i)
		assert.Equal(t, forward[i].ALast(), reverse[i].ALast(), "vehicle %d", i)
	}
}

// Two independent chains stepped in either order end in identical states.
func TestStep_IndependentChainsOrderIndependent(t *testing.T) {
	type chain [2]*Vehicle
	build := func() (chain, chain) {
		ids := NewIDCounter()
		l1 := New(ids, 0, 20)
		c1 := chain{l1, New(ids, -30, 18, WithLeader(l1))}
		l2 := New(ids, 500, 15, WithRole(RoleControlled))
		c2 := chain{l2, New(ids, 460, 17, WithLeader(l2))}
		return c1, c2
	}
	stepChain := func(c chain) {
		c[0].Step(25, 0.3)
		c[1].Step(25, 0)
	}

	a1, a2 := build()
	b1, b2 := build()
	for i := 0; i < 5; i++ {
		stepChain(a1)
		stepChain(a2)
		stepChain(b2)
		stepChain(b1)
	}

	for i, pair := range [][2]chain{{a1, b1}, {a2, b2}} {
		for j := range pair[0] {
			assert.Equal(t, pair[0][j].Snapshot(), pair[1][j].Snapshot(), "chain %d vehicle %d", i, j)
		}
	}
}

func TestSnapshot(t *testing.T) {
	ids := NewIDCounter()
	leader := New(ids, 10, 20)
	follower := New(ids, -20, 18, WithLeader(leader))

	s := follower.Snapshot()
	require.NotNil(t, s.LeaderID)
	assert.Equal(t, ID(0), *s.LeaderID)
	assert.Equal(t, State{
		VehicleID: 1,
		Role:      RoleFollower,
		LeaderID:  s.LeaderID,
		Position:  -20,
		Speed:     18,
		Spacing:   30,
		SpeedGap:  2,
	}, s)
	assert.Nil(t, leader.Snapshot().LeaderID)
}

type constantLaw float64

func (c constantLaw) Name() string { return "constant" }

func (c constantLaw) Acceleration(kinematics.Situation, float64) float64 { return float64(c) }
