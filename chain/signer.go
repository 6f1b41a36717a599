package chain

import (
	"fmt"
	"os"

	"github.com/cometbft/cometbft/crypto"
	"github.com/cometbft/cometbft/crypto/ed25519"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	"github.com/cometbft/cometbft/privval"
	"github.com/gradosphera/gonka/tx"
)

type Signer struct {
	privateKey crypto.PrivKey
	publicKey  crypto.PubKey
}

func NewSigner(priv crypto.PrivKey) *Signer {
	return &Signer{
		privateKey: priv,
		publicKey:  priv.PubKey(),
	}
}

func GenSigner() *Signer {
	return NewSigner(ed25519.GenPrivKey())
}

// LoadSigner reads a priv_validator_key.json file.
func LoadSigner(keyFilePath string) (*Signer, error) {
	keyJSONBytes, err := os.ReadFile(keyFilePath)
	if err != nil {
		return nil, err
	}
	pvKey := privval.FilePVKey{}
	err = cmtjson.Unmarshal(keyJSONBytes, &pvKey)
	if err != nil {
		return nil, fmt.Errorf("reading PrivValidator key from %v: %w", keyFilePath, err)
	}
	return &Signer{
		privateKey: pvKey.PrivKey,
		publicKey:  pvKey.PubKey,
	}, nil
}

func (k *Signer) PublicKey() []byte {
	return k.publicKey.Bytes()
}

func (k *Signer) Address() string {
	return k.publicKey.Address().String()
}

func (k *Signer) Sign(data []byte) ([]byte, error) {
	return k.privateKey.Sign(data)
}

// SignTx wraps msg in a signed envelope bound to chainID.
func (k *Signer) SignTx(msg tx.Msg, nonce uint64, chainID string) (*tx.Tx, error) {
	btx := tx.New(msg, k.Address(), k.PublicKey(), nonce)
	dat, err := btx.SigData([]byte(chainID))
	if err != nil {
		return nil, err
	}
	sig, err := k.Sign(dat)
	if err != nil {
		return nil, err
	}
	btx.Sig = [][]byte{sig}
	return btx, nil
}
