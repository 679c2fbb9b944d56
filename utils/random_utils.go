package utils

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// RandomInt32 生成一个安全的随机32位整数
func RandomInt32() int32 {
	var num int32
	err := binary.Read(rand.Reader, binary.BigEndian, &num)
	if err != nil {
		panic("generate random int32 failed")
	}

	return num
}

// RandomVerificationCode 生成6位数字验证码
func RandomVerificationCode() string {
	n := RandomInt32()
	if n < 0 {
		n = -n
	}
	return fmt.Sprintf("%06d", n%900000+100000)
}
