package eventwriter

import "os"

func flagsForAppend() int {
	return os.O_CREATE | os.O_WRONLY | os.O_APPEND
}
