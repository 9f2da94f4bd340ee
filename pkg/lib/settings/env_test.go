package settings

import "testing"

func TestReadEnvVarsEmpty(t *testing.T) {
	isolateEnv(t)

	env, err := readEnvVars()
	if err != nil {
		t.Fatalf("readEnvVars failed: %v", err)
	}
	if env.conf != "" || env.recreateLogs != nil || env.bufferSize != nil || env.target != nil {
		t.Fatalf("expected empty env vars, got %+v", env)
	}
}

func TestReadEnvVarsValid(t *testing.T) {
	isolateEnv(t)
	t.Setenv("FDINTERCEPTRC", "/some/rc.yaml")
	t.Setenv("FDINTERCEPT_RECREATE_LOGS", "true")
	t.Setenv("FDINTERCEPT_BUFFER_SIZE", "4096")
	t.Setenv("FDINTERCEPT_TARGET", "cat -A")

	env, err := readEnvVars()
	if err != nil {
		t.Fatalf("readEnvVars failed: %v", err)
	}
	if env.conf != "/some/rc.yaml" {
		t.Fatalf("unexpected conf: %q", env.conf)
	}
	if env.recreateLogs == nil || !*env.recreateLogs {
		t.Fatalf("expected recreate_logs true")
	}
	if env.bufferSize == nil || *env.bufferSize != 4096 {
		t.Fatalf("expected buffer size 4096")
	}
	if env.target == nil || *env.target != "cat -A" {
		t.Fatalf("expected target 'cat -A'")
	}
}

func TestReadEnvVarsEmptyRC(t *testing.T) {
	isolateEnv(t)
	t.Setenv("FDINTERCEPTRC", "")

	if _, err := readEnvVars(); err == nil {
		t.Fatalf("expected error for empty FDINTERCEPTRC")
	}
}

func TestReadEnvVarsBadBool(t *testing.T) {
	isolateEnv(t)
	t.Setenv("FDINTERCEPT_RECREATE_LOGS", "maybe")

	if _, err := readEnvVars(); err == nil {
		t.Fatalf("expected error for invalid FDINTERCEPT_RECREATE_LOGS")
	}
}

func TestReadEnvVarsBadBufferSize(t *testing.T) {
	isolateEnv(t)

	for _, value := range []string{"abc", "-1", "0"} {
		t.Setenv("FDINTERCEPT_BUFFER_SIZE", value)
		if _, err := readEnvVars(); err == nil {
			t.Fatalf("expected error for FDINTERCEPT_BUFFER_SIZE=%q", value)
		}
	}
}
