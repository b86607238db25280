package wire

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/psqlodbc-go/pgodbc/internal/proto"
)

// authenticate dispatches on the AuthenticationRequest sub-code. Grounded
// on the teacher's (*conn).auth in conn.go for cleartext/MD5, and its
// scram.go for the SASL/SCRAM-SHA-256 exchange (simplified here to omit
// SASLprep Unicode normalization of the password — see DESIGN.md).
func (s *Session) authenticate(body ReadBuf, cfg Config) error {
	switch proto.AuthCode(body.Int32()) {
	case proto.AuthReqOk:
		return nil
	case proto.AuthReqPassword:
		w := NewWriteBuf(byte(proto.PasswordMessage))
		w.String(cfg.Password)
		s.send(w.Wrap(1))
		return s.expectAuthOk()
	case proto.AuthReqMD5:
		salt := body.Next(4)
		hashed := "md5" + md5Hex(md5Hex(cfg.Password+cfg.User)+string(salt))
		w := NewWriteBuf(byte(proto.PasswordMessage))
		w.String(hashed)
		s.send(w.Wrap(1))
		return s.expectAuthOk()
	case proto.AuthReqSASL:
		return s.scramSHA256(cfg.Password)
	case proto.AuthReqGSS, proto.AuthReqSSPI:
		return s.gssAuthenticate(cfg)
	default:
		return fmt.Errorf("wire: unsupported authentication method")
	}
}

func (s *Session) expectAuthOk() error {
	typ, body, err := s.recvMsg()
	if err != nil {
		return err
	}
	if proto.ResponseCode(typ) == proto.ErrorResponse {
		return &WireError{Fields: parseFields(body)}
	}
	if proto.ResponseCode(typ) != proto.AuthenticationRequest || proto.AuthCode(body.Int32()) != proto.AuthReqOk {
		return fmt.Errorf("wire: unexpected response %q to password message", typ)
	}
	return nil
}

func md5Hex(s string) string {
	h := md5.Sum([]byte(s))
	return fmt.Sprintf("%x", h)
}

// scramSHA256 runs the SCRAM-SHA-256 SASL exchange described in RFC 5802:
// client-first-message, server-first-message (nonce/salt/iterations),
// client-final-message (with proof), server-final-message (verifier).
func (s *Session) scramSHA256(password string) error {
	clientNonce := makeNonce()
	clientFirstBare := "n=,r=" + clientNonce

	w := NewWriteBuf(byte(proto.SASLInitialResponse))
	w.String("SCRAM-SHA-256")
	msg := []byte("n,," + clientFirstBare)
	w.Int32(len(msg))
	w.Bytes(msg)
	s.send(w.Wrap(1))

	typ, body, err := s.recvMsg()
	if err != nil {
		return err
	}
	if proto.ResponseCode(typ) == proto.ErrorResponse {
		return &WireError{Fields: parseFields(body)}
	}
	if proto.ResponseCode(typ) != proto.AuthenticationRequest {
		return fmt.Errorf("wire: unexpected response %q in SCRAM exchange", typ)
	}
	if proto.AuthCode(body.Int32()) != proto.AuthReqSASLCont {
		return fmt.Errorf("wire: expected SASL continue")
	}
	serverFirst := string(body)

	var serverNonce, saltB64, iterStr string
	for _, part := range strings.Split(serverFirst, ",") {
		switch {
		case strings.HasPrefix(part, "r="):
			serverNonce = part[2:]
		case strings.HasPrefix(part, "s="):
			saltB64 = part[2:]
		case strings.HasPrefix(part, "i="):
			iterStr = part[2:]
		}
	}
	if !strings.HasPrefix(serverNonce, clientNonce) {
		return fmt.Errorf("wire: SCRAM server nonce does not extend client nonce")
	}
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return fmt.Errorf("wire: decoding SCRAM salt: %w", err)
	}
	iters, err := strconv.Atoi(iterStr)
	if err != nil {
		return fmt.Errorf("wire: parsing SCRAM iteration count: %w", err)
	}

	clientFinalNoProof := "c=biws,r=" + serverNonce
	authMessage := computeAuthMessage(clientFirstBare, serverFirst, clientFinalNoProof)

	saltedPassword := computeSaltedPassword(password, salt, iters)
	clientProof := computeClientProof(saltedPassword, authMessage)
	serverSignature := computeServerSignature(saltedPassword, authMessage)

	clientFinal := clientFinalNoProof + ",p=" + base64.StdEncoding.EncodeToString(clientProof)

	w = NewWriteBuf(byte(proto.SASLResponse))
	w.Bytes([]byte(clientFinal))
	s.send(w.Wrap(1))

	typ, body, err = s.recvMsg()
	if err != nil {
		return err
	}
	if proto.ResponseCode(typ) == proto.ErrorResponse {
		return &WireError{Fields: parseFields(body)}
	}
	if proto.ResponseCode(typ) != proto.AuthenticationRequest || proto.AuthCode(body.Int32()) != proto.AuthReqSASLFin {
		return fmt.Errorf("wire: expected SASL final")
	}
	serverFinal := string(body)
	if !strings.HasPrefix(serverFinal, "v=") {
		return fmt.Errorf("wire: malformed SCRAM server-final-message")
	}
	gotVerifier, err := base64.StdEncoding.DecodeString(serverFinal[2:])
	if err != nil {
		return fmt.Errorf("wire: decoding SCRAM verifier: %w", err)
	}
	if subtle.ConstantTimeCompare(gotVerifier, serverSignature) != 1 {
		return fmt.Errorf("wire: SCRAM server verifier mismatch")
	}

	return s.expectAuthOk()
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// computeAuthMessage joins the three messages RFC 5802 §3 hashes together
// to authenticate the exchange: client-first-message-bare,
// server-first-message, client-final-message-without-proof.
func computeAuthMessage(clientFirstBare, serverFirst, clientFinalNoProof string) []byte {
	return []byte(clientFirstBare + "," + serverFirst + "," + clientFinalNoProof)
}

// computeSaltedPassword runs PBKDF2-HMAC-SHA256 over password with salt/
// iters, per RFC 5802 §3's SaltedPassword definition. Factored out as a
// pure function so it can be checked against RFC test vectors without a
// live server, the way the teacher's scram package tests its own client.
func computeSaltedPassword(password string, salt []byte, iters int) []byte {
	return pbkdf2.Key([]byte(password), salt, iters, sha256.Size, sha256.New)
}

// computeClientProof derives ClientProof = ClientKey XOR ClientSignature,
// per RFC 5802 §3.
func computeClientProof(saltedPassword, authMessage []byte) []byte {
	clientKey := hmacSHA256(saltedPassword, []byte("Client Key"))
	storedKey := sha256.Sum256(clientKey)
	clientSignature := hmacSHA256(storedKey[:], authMessage)
	return xorBytes(clientKey, clientSignature)
}

// computeServerSignature derives ServerSignature = HMAC(ServerKey,
// AuthMessage), per RFC 5802 §3.
func computeServerSignature(saltedPassword, authMessage []byte) []byte {
	serverKey := hmacSHA256(saltedPassword, []byte("Server Key"))
	return hmacSHA256(serverKey, authMessage)
}

func makeNonce() string {
	var raw [18]byte
	if _, err := rand.Read(raw[:]); err != nil {
		panic(err)
	}
	return base64.RawStdEncoding.EncodeToString(raw[:])
}
