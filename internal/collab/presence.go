package collab

import "time"

type presenceEntry struct {
	participant Participant
	conns       int
}

// Presence is the participant list of a session, unique by participant id and
// kept in join order.
//
// Join/Leave count sockets so a user with several tabs leaves only when the
// last one closes. Put/Remove/Replace mirror server events on the client side.
type Presence struct {
	entries map[string]*presenceEntry
	order   []string
}

func NewPresence() *Presence {
	return &Presence{entries: make(map[string]*presenceEntry)}
}

// Join registers one more socket for p and reports whether p is new.
func (p *Presence) Join(participant Participant) bool {
	if entry, ok := p.entries[participant.ID]; ok {
		entry.conns++
		return false
	}
	p.entries[participant.ID] = &presenceEntry{participant: participant, conns: 1}
	p.order = append(p.order, participant.ID)
	return true
}

// Leave drops one socket of id and reports whether the participant is gone.
func (p *Presence) Leave(id string) bool {
	entry, ok := p.entries[id]
	if !ok {
		return false
	}
	entry.conns--
	if entry.conns > 0 {
		return false
	}
	p.Remove(id)
	return true
}

// Put adds or replaces a participant.
func (p *Presence) Put(participant Participant) {
	if entry, ok := p.entries[participant.ID]; ok {
		entry.participant = participant
		return
	}
	p.entries[participant.ID] = &presenceEntry{participant: participant, conns: 1}
	p.order = append(p.order, participant.ID)
}

func (p *Presence) Remove(id string) bool {
	if _, ok := p.entries[id]; !ok {
		return false
	}
	delete(p.entries, id)
	for i, existing := range p.order {
		if existing == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return true
}

// Replace swaps the whole list; later duplicates of an id win.
func (p *Presence) Replace(participants []Participant) {
	p.entries = make(map[string]*presenceEntry, len(participants))
	p.order = p.order[:0]
	for _, participant := range participants {
		p.Put(participant)
	}
}

func (p *Presence) Update(id string, fn func(*Participant)) bool {
	entry, ok := p.entries[id]
	if !ok {
		return false
	}
	fn(&entry.participant)
	now := time.Now().UTC()
	entry.participant.LastActivity = &now
	return true
}

func (p *Presence) Get(id string) (Participant, bool) {
	entry, ok := p.entries[id]
	if !ok {
		return Participant{}, false
	}
	return entry.participant, true
}

func (p *Presence) List() []Participant {
	out := make([]Participant, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.entries[id].participant)
	}
	return out
}

func (p *Presence) Len() int {
	return len(p.order)
}
