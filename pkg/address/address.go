package address

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
)

// Address identifies an account or a contract.
type Address [Length]byte

// NetWork
type NetWork = byte

const (
	Mainnet NetWork = iota
	Testnet
)

const Length = common.AddressLength

const (
	MainnetPrefix = "NULS"
	TestnetPrefix = "tNULS"
)

const (
	UndefAddressString = ""
)

var Undef = Address{}
var CurrentNetWork = Testnet

var prefixSet = map[byte]string{
	Mainnet: MainnetPrefix,
	Testnet: TestnetPrefix,
}

// NewContractAddress derives the address of a contract created by sender.
// The nonce is used as salt and the code hash as init hash, so the same
// sender deploying the same code twice gets two addresses.
func NewContractAddress(sender Address, nonce uint64, codeHash common.Hash) Address {
	var salt [32]byte
	binary.BigEndian.PutUint64(salt[24:], nonce)
	return Address(crypto.CreateAddress2(common.Address(sender), salt, codeHash.Bytes()))
}

func NewFromBytes(b []byte) (Address, error) {
	if len(b) == 0 {
		return Undef, nil
	}
	if len(b) != Length {
		return Undef, fmt.Errorf("invalid address bytes")
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

// Parse accepts the prefixed base58 form, bare base58, 0x hex or bare hex.
func Parse(str string) (Address, error) {
	if str == UndefAddressString {
		return Undef, nil
	}
	if strings.HasPrefix(str, "0x") || strings.HasPrefix(str, "0X") {
		if !common.IsHexAddress(str) {
			return Undef, fmt.Errorf("invalid hex address %q", str)
		}
		return Address(common.HexToAddress(str)), nil
	}
	if len(str) == 2*Length {
		if b, err := hex.DecodeString(str); err == nil {
			return NewFromBytes(b)
		}
	}
	if p := prefixSet[CurrentNetWork]; strings.HasPrefix(str, p) {
		str = str[len(p):]
	}
	b, err := base58.Decode(str)
	if err != nil {
		return Undef, fmt.Errorf("invalid address %q: %w", str, err)
	}
	if len(b) != Length {
		return Undef, fmt.Errorf("invalid address %q", str)
	}
	return NewFromBytes(b)
}

func (a Address) String() string {
	if a == Undef {
		return UndefAddressString
	}
	return prefixSet[CurrentNetWork] + base58.Encode(a[:])
}

func (a Address) Hex() string {
	return common.Address(a).Hex()
}

func (a Address) Bytes() []byte {
	return append([]byte{}, a[:]...)
}

func (a Address) IsZero() bool {
	return a == Undef
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(b []byte) error {
	addr, err := Parse(string(b))
	if err != nil {
		return err
	}
	*a = addr
	return nil
}
