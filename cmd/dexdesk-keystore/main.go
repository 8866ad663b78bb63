package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/betbot/dexdesk/pkg/secretstore"
)

// 把钱包私钥导入加密 badger 库，之后 dexdesk -keystore 启动时不再需要
// 明文环境变量。私钥从 stdin 读，不会出现在命令行历史里。
func main() {
	var (
		dbPath    = flag.String("keystore", getenv("DEXDESK_KEYSTORE", "data/keystore"), "加密钱包库路径")
		secretKey = flag.String("secret-key", getenv("DEXDESK_KEYSTORE_KEY", ""), "库加密密钥（32 字节 base64/hex）")
	)
	flag.Parse()

	keyBytes, err := secretstore.ParseKey(*secretKey)
	if err != nil {
		fatal(err)
	}
	if keyBytes == nil {
		fatal(fmt.Errorf("加密密钥必填：设置 DEXDESK_KEYSTORE_KEY 或传 -secret-key"))
	}

	fmt.Fprint(os.Stderr, "粘贴钱包私钥（hex），回车结束: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		fatal(err)
	}
	privateKey := strings.TrimSpace(line)
	if privateKey == "" {
		fatal(fmt.Errorf("私钥为空"))
	}

	ss, err := secretstore.Open(secretstore.OpenOptions{
		Path:          *dbPath,
		EncryptionKey: keyBytes,
		ReadOnly:      false,
	})
	if err != nil {
		fatal(err)
	}
	defer ss.Close()

	if err := ss.SetString("wallet.private_key", privateKey); err != nil {
		fatal(err)
	}
	fmt.Fprintf(os.Stderr, "私钥已写入: %s\n", *dbPath)
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err.Error())
	os.Exit(1)
}
