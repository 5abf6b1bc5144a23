package wire

// PublishType distinguishes the three publish/withdraw record kinds
// carried by a FILE message (spec §3 "Publish record").
type PublishType uint32

const (
	PubAdd PublishType = iota
	PubUpdate
	PubWithdraw
)

// HTTPReq is emitted engine -> parent to request a fetch.
type HTTPReq struct {
	SessionID uint32
	URI       string
	LastMod   string // empty when no conditional refetch is requested
}

func (m HTTPReq) Encode() []byte {
	e := NewEncoder()
	e.PutUint32(m.SessionID)
	e.PutString(m.URI)
	e.PutString(m.LastMod)
	return e.Bytes()
}

func DecodeHTTPReq(body []byte) (HTTPReq, error) {
	d := NewDecoder(body)
	var m HTTPReq
	var err error
	if m.SessionID, err = d.Uint32(); err != nil {
		return m, err
	}
	if m.URI, err = d.String(); err != nil {
		return m, err
	}
	if m.LastMod, err = d.String(); err != nil {
		return m, err
	}
	return m, nil
}

// Session is emitted engine -> parent once a session's new state has been
// established, always immediately before an END with ok=1.
type Session struct {
	SessionID  uint32
	NewID      string // the protocol session_id string (may equal the prior one)
	NewSerial  int64
	NewLastMod string
}

func (m Session) Encode() []byte {
	e := NewEncoder()
	e.PutUint32(m.SessionID)
	e.PutString(m.NewID)
	e.PutInt64(m.NewSerial)
	e.PutString(m.NewLastMod)
	return e.Bytes()
}

func DecodeSession(body []byte) (Session, error) {
	d := NewDecoder(body)
	var m Session
	var err error
	if m.SessionID, err = d.Uint32(); err != nil {
		return m, err
	}
	if m.NewID, err = d.String(); err != nil {
		return m, err
	}
	if m.NewSerial, err = d.Int64(); err != nil {
		return m, err
	}
	if m.NewLastMod, err = d.String(); err != nil {
		return m, err
	}
	return m, nil
}

// File is emitted engine -> parent for each publish/withdraw record; the
// ExpectedHash is omitted on the wire (HasHash=false) when Type is PubAdd.
type File struct {
	SessionID    uint32
	Type         PublishType
	HasHash      bool
	ExpectedHash [32]byte
	URI          string
	Body         []byte
}

func (m File) Encode() []byte {
	e := NewEncoder()
	e.PutUint32(m.SessionID)
	e.PutUint32(uint32(m.Type))
	if m.HasHash {
		e.PutUint32(1)
		e.buf.Write(m.ExpectedHash[:])
	} else {
		e.PutUint32(0)
	}
	e.PutString(m.URI)
	e.PutBytes(m.Body)
	return e.Bytes()
}

func DecodeFile(body []byte) (File, error) {
	d := NewDecoder(body)
	var m File
	var err error
	if m.SessionID, err = d.Uint32(); err != nil {
		return m, err
	}
	var typ uint32
	if typ, err = d.Uint32(); err != nil {
		return m, err
	}
	m.Type = PublishType(typ)

	var hasHash uint32
	if hasHash, err = d.Uint32(); err != nil {
		return m, err
	}
	if hasHash != 0 {
		m.HasHash = true
		raw, err := d.FixedBytes(32)
		if err != nil {
			return m, err
		}
		copy(m.ExpectedHash[:], raw)
	}
	if m.URI, err = d.String(); err != nil {
		return m, err
	}
	if m.Body, err = d.Bytes(); err != nil {
		return m, err
	}
	return m, nil
}

// End is emitted engine -> parent exactly once per session, as its final
// message.
type End struct {
	SessionID uint32
	OK        bool
}

func (m End) Encode() []byte {
	e := NewEncoder()
	e.PutUint32(m.SessionID)
	if m.OK {
		e.PutInt64(1)
	} else {
		e.PutInt64(0)
	}
	return e.Bytes()
}

func DecodeEnd(body []byte) (End, error) {
	d := NewDecoder(body)
	var m End
	var err error
	if m.SessionID, err = d.Uint32(); err != nil {
		return m, err
	}
	var ok int64
	if ok, err = d.Int64(); err != nil {
		return m, err
	}
	m.OK = ok != 0
	return m, nil
}

// Start is sent parent -> engine to create a new session.
type Start struct {
	SessionID     uint32
	LocalLabel    string
	NotifyURI     string
	RepoSessionID string // empty when there is no known-good repository state
	RepoSerial    int64
	RepoLastMod   string
}

func DecodeStart(body []byte) (Start, error) {
	d := NewDecoder(body)
	var m Start
	var err error
	if m.SessionID, err = d.Uint32(); err != nil {
		return m, err
	}
	if m.LocalLabel, err = d.String(); err != nil {
		return m, err
	}
	if m.NotifyURI, err = d.String(); err != nil {
		return m, err
	}
	if m.RepoSessionID, err = d.String(); err != nil {
		return m, err
	}
	if m.RepoSerial, err = d.Int64(); err != nil {
		return m, err
	}
	if m.RepoLastMod, err = d.String(); err != nil {
		return m, err
	}
	return m, nil
}

func (m Start) Encode() []byte {
	e := NewEncoder()
	e.PutUint32(m.SessionID)
	e.PutString(m.LocalLabel)
	e.PutString(m.NotifyURI)
	e.PutString(m.RepoSessionID)
	e.PutInt64(m.RepoSerial)
	e.PutString(m.RepoLastMod)
	return e.Bytes()
}

// HTTPIni is sent parent -> engine with a readable transport descriptor
// attached out-of-band (see Conn.WriteHTTPIni / Conn.ReadMessage).
type HTTPIni struct {
	SessionID uint32
}

func DecodeHTTPIni(body []byte) (HTTPIni, error) {
	d := NewDecoder(body)
	var m HTTPIni
	var err error
	if m.SessionID, err = d.Uint32(); err != nil {
		return m, err
	}
	return m, nil
}

// HTTPFin is sent parent -> engine to report the outcome of a fetch.
type HTTPFin struct {
	SessionID  uint32
	HTTPStatus int32
	LastMod    string
}

func DecodeHTTPFin(body []byte) (HTTPFin, error) {
	d := NewDecoder(body)
	var m HTTPFin
	var err error
	if m.SessionID, err = d.Uint32(); err != nil {
		return m, err
	}
	var status int64
	if status, err = d.Int64(); err != nil {
		return m, err
	}
	m.HTTPStatus = int32(status)
	if m.LastMod, err = d.String(); err != nil {
		return m, err
	}
	return m, nil
}

func (m HTTPFin) Encode() []byte {
	e := NewEncoder()
	e.PutUint32(m.SessionID)
	e.PutInt64(int64(m.HTTPStatus))
	e.PutString(m.LastMod)
	return e.Bytes()
}

// FileAck is sent parent -> engine in response to a FILE message.
type FileAck struct {
	SessionID uint32
	Failed    bool
}

func DecodeFileAck(body []byte) (FileAck, error) {
	d := NewDecoder(body)
	var m FileAck
	var err error
	if m.SessionID, err = d.Uint32(); err != nil {
		return m, err
	}
	var status int64
	if status, err = d.Int64(); err != nil {
		return m, err
	}
	m.Failed = status == 0
	return m, nil
}

func (m FileAck) Encode() []byte {
	e := NewEncoder()
	e.PutUint32(m.SessionID)
	if m.Failed {
		e.PutInt64(0)
	} else {
		e.PutInt64(1)
	}
	return e.Bytes()
}
