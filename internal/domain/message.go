package domain

// Capabilities advertises what the client can decode.
type Capabilities struct {
	Languages        []string `json:"languages"`
	CompressionAlgos []string `json:"compressionalgos"`
	EncoderFormats   []string `json:"encoderformats"`
}

// KeyRequestData asks the server for new session keys.
type KeyRequestData struct {
	Scheme  Scheme `json:"scheme"`
	KeyData any    `json:"keydata"`
}

// EmailPassword is the authdata of the EMAIL_PASSWORD user-auth scheme.
type EmailPassword struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserAuthData re-authenticates the user on a request.
type UserAuthData struct {
	Scheme   string        `json:"scheme"`
	AuthData EmailPassword `json:"authdata"`
}

// Header is the per-message metadata document. It is built fresh for every
// message and never persisted.
type Header struct {
	Sender         string           `json:"sender"`
	Renewable      bool             `json:"renewable"`
	Capabilities   Capabilities     `json:"capabilities"`
	Handshake      bool             `json:"handshake"`
	NonReplayable  bool             `json:"nonreplayable"`
	Recipient      string           `json:"recipient"`
	MessageID      int64            `json:"messageid"`
	Timestamp      int64            `json:"timestamp"`
	KeyRequestData []KeyRequestData `json:"keyrequestdata,omitempty"`
	UserAuthData   *UserAuthData    `json:"userauthdata,omitempty"`
}

// PayloadChunk is one unit of a request or response body.
type PayloadChunk struct {
	MessageID       int64  `json:"messageid"`
	Data            string `json:"data"`
	CompressionAlgo string `json:"compressionalgo,omitempty"`
	SequenceNumber  int64  `json:"sequencenumber"`
	EndOfMsg        bool   `json:"endofmsg"`
}

// Envelope is the encrypted form of a Header or PayloadChunk.
type Envelope struct {
	Ciphertext string `json:"ciphertext"`
	KeyID      string `json:"keyid"`
	SHA256     string `json:"sha256"`
	IV         string `json:"iv"`
}
