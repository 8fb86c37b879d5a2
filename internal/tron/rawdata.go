package tron

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of protocol.Transaction and its raw message.
const (
	txRawDataField   = 1
	txSignatureField = 2
	txRetField       = 5

	rawExpirationField = 8
	rawContractField   = 11
	rawFeeLimitField   = 18

	contractTypeField      = 1
	contractParameterField = 2
	anyValueField          = 2
	ownerAddressField      = 1
)

// Contract types the engine builds.
const (
	TransferContract     = 1
	TriggerSmartContract = 31
)

// rawInfo is what the engine checks in node-built raw_data.
type rawInfo struct {
	contractType uint64
	owner        Address
	expiration   int64
	feeLimit     int64
}

// parseRawData walks the protobuf raw_data and extracts the single contract's
// type and owner.
func parseRawData(b []byte) (*rawInfo, error) {
	info := &rawInfo{}
	contracts := 0
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte, n uint64) error {
		switch {
		case num == rawContractField && typ == protowire.BytesType:
			contracts++
			return parseContract(v, info)
		case num == rawExpirationField && typ == protowire.VarintType:
			info.expiration = int64(n)
		case num == rawFeeLimitField && typ == protowire.VarintType:
			info.feeLimit = int64(n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if contracts != 1 {
		return nil, fmt.Errorf("expected one contract, got %d", contracts)
	}
	return info, nil
}

func parseContract(b []byte, info *rawInfo) error {
	var param []byte
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte, n uint64) error {
		switch {
		case num == contractTypeField && typ == protowire.VarintType:
			info.contractType = n
		case num == contractParameterField && typ == protowire.BytesType:
			param = v
		}
		return nil
	})
	if err != nil {
		return err
	}

	var value []byte
	err = walk(param, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		if num == anyValueField && typ == protowire.BytesType {
			value = v
		}
		return nil
	})
	if err != nil {
		return err
	}

	found := false
	err = walk(value, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		if num == ownerAddressField && typ == protowire.BytesType {
			a, ok := addressFromBytes(v)
			if !ok {
				return errors.New("invalid owner address")
			}
			info.owner = a
			found = true
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !found {
		return errors.New("contract has no owner")
	}
	return nil
}

// walk visits every field of a protobuf message. v is set for length
// delimited fields, n for varints.
func walk(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte, n uint64) error) error {
	for len(b) > 0 {
		num, typ, l := protowire.ConsumeTag(b)
		if l < 0 {
			return protowire.ParseError(l)
		}
		b = b[l:]

		var (
			v []byte
			n uint64
		)
		switch typ {
		case protowire.VarintType:
			n, l = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			v, l = protowire.ConsumeBytes(b)
		default:
			l = protowire.ConsumeFieldValue(num, typ, b)
		}
		if l < 0 {
			return protowire.ParseError(l)
		}
		b = b[l:]

		err := fn(num, typ, v, n)
		if err != nil {
			return err
		}
	}
	return nil
}

// encodeSigned builds protocol.Transaction{raw_data, signature}.
func encodeSigned(rawData, sig []byte) []byte {
	var b []byte
	b = protowire.AppendTag(b, txRawDataField, protowire.BytesType)
	b = protowire.AppendBytes(b, rawData)
	b = protowire.AppendTag(b, txSignatureField, protowire.BytesType)
	b = protowire.AppendBytes(b, sig)
	return b
}

// decodeSigned splits a serialized protocol.Transaction. Result entries are
// tolerated, any other field is rejected.
func decodeSigned(b []byte) (rawData []byte, sigs [][]byte, err error) {
	err = walk(b, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		switch {
		case num == txRawDataField && typ == protowire.BytesType:
			if rawData != nil {
				return errors.New("duplicate raw_data")
			}
			rawData = v
		case num == txSignatureField && typ == protowire.BytesType:
			sigs = append(sigs, v)
		case num == txRetField:
		default:
			return fmt.Errorf("unexpected field %d", num)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if rawData == nil {
		return nil, nil, errors.New("missing raw_data")
	}
	return rawData, sigs, nil
}
