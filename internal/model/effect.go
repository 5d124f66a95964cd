package model

// Effect is what a recorded resolution asks the content layer to do.
// The set of implementations is closed; consumers switch on the concrete type.
type Effect interface {
	isEffect()
}

// KeepChange keeps Winner and discards Loser.
type KeepChange struct {
	Winner SyncChange
	Loser  SyncChange
}

// KeepBoth keeps both sides, the content layer materialises a copy.
type KeepBoth struct {
	Local  SyncChange
	Remote SyncChange
}

// AwaitMerge asks a client to produce merged content out of band.
type AwaitMerge struct {
	Local  SyncChange
	Remote SyncChange
}

// AwaitManual leaves the outcome to the user.
type AwaitManual struct {
	Local  SyncChange
	Remote SyncChange
}

func (KeepChange) isEffect()  {}
func (KeepBoth) isEffect()    {}
func (AwaitMerge) isEffect()  {}
func (AwaitManual) isEffect() {}

// Effect maps the recorded resolution to its variant.
// ok is false while the conflict is pending.
func (c SyncConflict) Effect() (e Effect, ok bool) {
	if c.Resolution == nil {
		return nil, false
	}
	switch *c.Resolution {
	case ResolutionKeepLocal:
		return KeepChange{Winner: c.LocalChange, Loser: c.RemoteChange}, true
	case ResolutionKeepRemote:
		return KeepChange{Winner: c.RemoteChange, Loser: c.LocalChange}, true
	case ResolutionKeepBoth:
		return KeepBoth{Local: c.LocalChange, Remote: c.RemoteChange}, true
	case ResolutionMerge:
		return AwaitMerge{Local: c.LocalChange, Remote: c.RemoteChange}, true
	case ResolutionManual:
		return AwaitManual{Local: c.LocalChange, Remote: c.RemoteChange}, true
	}
	return nil, false
}
