package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"governance-voting-backend/database"
	"governance-voting-backend/ledger"

	"github.com/joho/godotenv"
)

// 离线审计工具：独立于服务进程校验投票哈希链。
// 退出码：0 全部通过，1 发现链断裂，2 参数或环境错误。

func main() {
	pollID := flag.Uint("poll", 0, "校验指定投票的哈希链")
	all := flag.Bool("all", false, "校验所有有投票记录的哈希链")
	exportPath := flag.String("export", "", "将指定投票的完整链记录导出为JSON文件（须配合-poll）")
	flag.Parse()

	// 0是flag包的未设置默认值，必须区分"-poll 0"和未提供-poll
	pollSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "poll" {
			pollSet = true
		}
	})

	if err := validateArgs(pollSet, *pollID, *all, *exportPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()

	if err := database.InitDB(); err != nil {
		fmt.Fprintf(os.Stderr, "无法初始化数据库: %v\n", err)
		os.Exit(2)
	}
	defer database.CloseDB()

	// 审计是纯读操作，不需要排序闸门和审计事件发布
	auditLedger := ledger.NewLedger(database.DB, ledger.NewLocalGate(), nil)

	if *exportPath != "" {
		if err := exportChain(auditLedger, uint(*pollID), *exportPath); err != nil {
			fmt.Fprintf(os.Stderr, "导出失败: %v\n", err)
			os.Exit(2)
		}
	}

	valid, err := validate(auditLedger, uint(*pollID), *all)
	if err != nil {
		fmt.Fprintf(os.Stderr, "校验失败: %v\n", err)
		os.Exit(2)
	}
	if !valid {
		os.Exit(1)
	}
}

// validateArgs 校验命令行参数组合
func validateArgs(pollSet bool, pollID uint, all bool, exportPath string) error {
	if !pollSet && !all {
		return fmt.Errorf("必须指定 -poll <id> 或 -all")
	}
	if pollSet && pollID == 0 {
		return fmt.Errorf("-poll 需要一个从1开始的投票ID")
	}
	if exportPath != "" && !pollSet {
		return fmt.Errorf("-export 必须配合 -poll 使用")
	}
	return nil
}

// validate 执行校验并把报告打印到标准输出
func validate(l *ledger.Ledger, pollID uint, all bool) (bool, error) {
	if all {
		report, err := l.ValidateAll()
		if err != nil {
			return false, err
		}
		if err := printJSON(report); err != nil {
			return false, err
		}
		return report.Valid, nil
	}

	report, err := l.ValidateChain(pollID)
	if err != nil {
		return false, err
	}
	if err := printJSON(report); err != nil {
		return false, err
	}
	return report.Valid, nil
}

// exportChain 把完整链记录（含用户ID，仅供特权审计）写入JSON文件
func exportChain(l *ledger.Ledger, pollID uint, path string) error {
	entries, err := l.ExportChain(pollID)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "已导出投票 %d 的 %d 条链记录到 %s\n", pollID, len(entries), path)
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
