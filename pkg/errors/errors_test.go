package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestHostErrorFormatting(t *testing.T) {
	tests := []struct {
		name string
		err  *HostError
		want string
	}{
		{
			name: "code only",
			err:  New(ErrRuntime, "boom"),
			want: "[RUNTIME] boom",
		},
		{
			name: "with section",
			err:  ConfigSectionError("plotter"),
			want: "[CONFIG_SECTION:plotter] section 'plotter' not found",
		},
		{
			name: "kinematics config",
			err:  KinematicsConfigError("bend_angle", 180, "must be below 180"),
			want: "[KINEMATICS_CONFIG:bend_angle] bend_angle=180: must be below 180",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsWalksWrappedErrors(t *testing.T) {
	base := KinematicsConfigError("main_arm_length", -1, "must be above 0")
	wrapped := fmt.Errorf("apply config: %w", base)

	if !Is(wrapped, ErrKinematicsConfig) {
		t.Error("expected wrapped error to match ErrKinematicsConfig")
	}
	if !IsKinematics(wrapped) {
		t.Error("expected IsKinematics on wrapped error")
	}
	if IsConfig(wrapped) {
		t.Error("kinematics error must not be classified as config error")
	}
	if Is(stderrors.New("plain"), ErrRuntime) {
		t.Error("plain error must not match any code")
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := stderrors.New("device busy")
	err := SerialError("/dev/ttyUSB0", "open", cause)
	if !stderrors.Is(err, cause) {
		t.Error("expected Unwrap to expose the cause")
	}
	if !IsTransport(err) {
		t.Error("expected IsTransport")
	}
	if err.Context["device"] != "/dev/ttyUSB0" {
		t.Errorf("device context = %v", err.Context["device"])
	}
}

func TestRecoverPanic(t *testing.T) {
	if RecoverPanic(nil) != nil {
		t.Fatal("nil panic value should give nil error")
	}

	var herr *HostError
	func() {
		defer func() { herr = RecoverPanic(recover()) }()
		panic("solver exploded")
	}()
	if herr == nil || herr.Code != ErrRuntime {
		t.Fatalf("expected runtime error, got %v", herr)
	}
	if !strings.Contains(herr.Message, "solver exploded") {
		t.Errorf("message = %q", herr.Message)
	}

	herr = RecoverPanic(stderrors.New("bad"))
	if herr.Message != "bad" {
		t.Errorf("error panic message = %q", herr.Message)
	}
}

func TestWithConfigPath(t *testing.T) {
	if WithConfigPath(nil, "x") != nil {
		t.Error("nil in, nil out")
	}
	err := WithConfigPath(ConfigOptionError("plotter", "bend_angle"), "/etc/plotter.cfg")
	if err.Context["config_path"] != "/etc/plotter.cfg" {
		t.Errorf("config_path = %v", err.Context["config_path"])
	}
}
