package wall_nav

import "strings"

// SCurveSide tells which wall of a narrow corridor is strictly closer.
type SCurveSide int

const (
	SCurveNone SCurveSide = iota
	SCurveLeft            // left wall nearer, escape right
	SCurveRight           // right wall nearer, escape left
)

func (s SCurveSide) String() string {
	switch s {
	case SCurveLeft:
		return "left"
	case SCurveRight:
		return "right"
	default:
		return "none"
	}
}

// Pattern is the set of situational facts derived from one snapshot.
type Pattern struct {
	FrontVeryClose bool
	FrontBlocked   bool
	FrontInRange   bool // something ahead closer than WallNone
	LeftOpen       bool
	RightOpen      bool
	IsSCurve       bool
	SCurve         SCurveSide
	LeftTooClose   bool
	RightTooClose  bool
	SideTooClose   bool
	FollowClose    bool // followed wall inside WallClose

	// Nearer is the side with the closest straight or diagonal reading.
	Nearer Side
	// Roomier is the side with more free space (straight + diagonal).
	Roomier Side
}

// DetectPattern derives the situational facts for s, which must already be
// normalized. It has no state and never fails.
func DetectPattern(s SensorSnapshot, cfg ControllerConfig) Pattern {
	var p Pattern

	followStraight, followDiag := s.side(cfg.FollowSide)
	p.FrontVeryClose = s.Center < cfg.WallVeryClose
	p.FrontBlocked = s.Center < cfg.FrontBlocked || followDiag < cfg.FrontBlocked*cfg.FrontDiagonalScale
	p.FrontInRange = s.Center < cfg.WallNone

	cornerAhead := p.FrontInRange && !p.FrontBlocked
	p.LeftOpen = cornerAhead && s.Left > cfg.CornerOpen && s.FrontLeft > cfg.CornerOpen
	p.RightOpen = cornerAhead && s.Right > cfg.CornerOpen && s.FrontRight > cfg.CornerOpen

	p.IsSCurve = s.Left < cfg.SCurveThreshold && s.Right < cfg.SCurveThreshold
	if p.IsSCurve {
		switch {
		case s.Left < s.Right-cfg.SCurveMargin:
			p.SCurve = SCurveLeft
		case s.Right < s.Left-cfg.SCurveMargin:
			p.SCurve = SCurveRight
		}
	}

	p.LeftTooClose = s.Left < cfg.WallVeryClose || s.FrontLeft < cfg.WallVeryClose
	p.RightTooClose = s.Right < cfg.WallVeryClose || s.FrontRight < cfg.WallVeryClose
	p.SideTooClose = p.LeftTooClose || p.RightTooClose
	p.FollowClose = followStraight < cfg.WallClose

	leftMin, rightMin := min(s.Left, s.FrontLeft), min(s.Right, s.FrontRight)
	switch {
	case leftMin < rightMin:
		p.Nearer = SideLeft
	case rightMin < leftMin:
		p.Nearer = SideRight
	default:
		p.Nearer = cfg.FollowSide
	}

	leftRoom, rightRoom := s.Left+s.FrontLeft, s.Right+s.FrontRight
	switch {
	case leftRoom > rightRoom:
		p.Roomier = SideLeft
	case rightRoom > leftRoom:
		p.Roomier = SideRight
	default:
		p.Roomier = cfg.FollowSide.Opposite()
	}

	return p
}

// CornerOpen reports whether the wall on sd has receded ahead of a corner.
func (p Pattern) CornerOpen(sd Side) bool {
	if sd == SideRight {
		return p.RightOpen
	}
	return p.LeftOpen
}

// Flags renders the active facts as a short tag list for debug output.
func (p Pattern) Flags() string {
	var flags []string
	if p.SCurve == SCurveLeft {
		flags = append(flags, "L-S")
	}
	if p.SCurve == SCurveRight {
		flags = append(flags, "R-S")
	}
	if p.FrontBlocked {
		flags = append(flags, "BLK")
	}
	if p.FrontVeryClose {
		flags = append(flags, "CRT")
	}
	if p.LeftOpen {
		flags = append(flags, "L-OPEN")
	}
	if p.RightOpen {
		flags = append(flags, "R-OPEN")
	}
	if p.SideTooClose {
		flags = append(flags, "SIDE")
	}
	if len(flags) == 0 {
		return "-"
	}
	return strings.Join(flags, ",")
}
