package tally

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrClosed             = errors.New("tally: voting is closed")
	ErrOpen               = errors.New("tally: voting is still open")
	ErrDuplicateVoter     = errors.New("tally: voter already submitted a ballot")
	ErrKeyMismatch        = errors.New("tally: ciphertexts are under a different key")
	ErrElectionMismatch   = errors.New("tally: submission is for a different election")
	ErrInvalidVoter       = errors.New("tally: invalid voter address")
	ErrInvalidSignature   = errors.New("tally: invalid signature")
	ErrUnknownCandidate   = errors.New("tally: candidate is not in the manifest")
	ErrAlreadyDecrypted   = errors.New("tally: election was already decrypted")
	ErrUnknownElection    = errors.New("tally: election was not opened by this authority")
	ErrInvalidTally       = errors.New("tally: malformed aggregated tally")
	ErrInvalidAttestation = errors.New("tally: attestation does not match the result")
)

// Rejection records why a submission was refused by Aggregator.Ingest.
type Rejection struct {
	// Index is the position of the submission in the ingested slice
	Index int
	Voter common.Address
	Err   error
}

func (r Rejection) Error() string {
	return fmt.Sprintf("submission %d (voter %s): %s", r.Index, r.Voter.Hex(), r.Err)
}

func (r Rejection) Unwrap() error {
	return r.Err
}
